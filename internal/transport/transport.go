// Package transport holds the pieces shared by the inference backends:
// SSE line scanning, HTTP error classification, and the single retry.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// UserAgent is sent on every upstream request.
const UserAgent = "blackjack-advisor/1.0"

// MaxRetries is the most retries a transport may perform for one call.
const MaxRetries = 1

// ClampRetries bounds n to [0, MaxRetries].
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClassifyError converts an error from http.Client.Do or a body read into a
// TransportError. Context deadline errors become ErrorTypeTimeout.
func ClassifyError(ctx context.Context, err error) *domain.TransportError {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewTransportError(domain.ErrorTypeTimeout, err.Error()).WithCause(err)
	}
	return domain.NewTransportError(domain.ErrorTypeConnection, err.Error()).WithCause(err)
}

// StatusError builds the error for a non-2xx response. The body is
// truncated to keep log lines bounded.
func StatusError(resp *http.Response) *domain.TransportError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return domain.NewTransportError(domain.ErrorTypeUpstream, msg).WithStatus(resp.StatusCode)
}

// Do sends the request built by newReq, retrying at most retries times when
// the failure is retryable. newReq is called once per attempt so the body
// can be re-read. The caller owns the returned response body.
func Do(ctx context.Context, client *http.Client, retries int, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr *domain.TransportError
	for attempt := 0; attempt <= ClampRetries(retries); attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = ClassifyError(ctx, err)
		} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = StatusError(resp)
			resp.Body.Close()
		} else {
			return resp, nil
		}

		if !lastErr.IsRetryable() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// ScanSSE reads server-sent event data lines from body and hands each
// payload to fn in order. It stops at the "[DONE]" sentinel or when fn
// returns done. Input that ends before either is a truncated stream and
// yields an ErrorTypeMalformedStream error.
func ScanSSE(body io.Reader, fn func(data string) (done bool, err error)) error {
	scanner := bufio.NewScanner(body)
	// Increase buffer size for potentially large chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}

		done, err := fn(data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return domain.NewTransportError(domain.ErrorTypeMalformedStream, "stream ended without a terminal event")
}

// Emit sends ev on out unless ctx is done first. It reports whether the
// event was delivered.
func Emit(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
