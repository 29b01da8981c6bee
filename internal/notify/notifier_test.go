package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

type fakeInvoker struct {
	mu       sync.Mutex
	err      error
	delay    time.Duration
	agentIDs []string
	messages []string
}

func (f *fakeInvoker) InvokeAgent(ctx context.Context, agentID, message string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentIDs = append(f.agentIDs, agentID)
	f.messages = append(f.messages, message)
	return f.err
}

func TestNotifier_Delivers(t *testing.T) {
	inv := &fakeInvoker{}
	n := New(inv, "balance-agent")

	n.Notify("bank is 900")
	n.Notify("bank is 880")
	n.Wait()

	assert.ElementsMatch(t, []string{"bank is 900", "bank is 880"}, inv.messages)
	assert.Equal(t, []string{"balance-agent", "balance-agent"}, inv.agentIDs)
}

func TestNotifier_SwallowsErrors(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("agent unavailable")}

	var mu sync.Mutex
	var got []error
	n := New(inv, "balance-agent", WithErrorHandler(func(note string, err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	}))

	assert.NotPanics(t, func() { n.Notify("bank is 900") })
	n.Wait()

	require.Len(t, got, 1)
	assert.EqualError(t, got[0], "agent unavailable")
}

func TestNotifier_Timeout(t *testing.T) {
	inv := &fakeInvoker{delay: time.Second}

	errs := make(chan error, 1)
	n := New(inv, "balance-agent",
		WithTimeout(20*time.Millisecond),
		WithErrorHandler(func(_ string, err error) { errs <- err }))

	n.Notify("slow")
	n.Wait()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	default:
		t.Fatal("expected timeout error")
	}
}

func TestNotifier_NotConfigured(t *testing.T) {
	errs := make(chan error, 1)
	n := New(nil, "balance-agent", WithErrorHandler(func(_ string, err error) { errs <- err }))

	n.Notify("bank is 900")
	n.Wait()

	err := <-errs
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.ErrorTypeNotConfigured, te.Type)
}

func TestNotifier_BlankNoteDropped(t *testing.T) {
	inv := &fakeInvoker{}
	n := New(inv, "balance-agent")

	n.Notify("   ")
	n.Wait()

	assert.Empty(t, inv.messages)
}
