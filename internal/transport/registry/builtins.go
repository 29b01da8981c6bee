package registry

import (
	"fmt"
	"net/url"

	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
	"github.com/tjfontaine/blackjack-advisor/internal/transport/llamastack"
	"github.com/tjfontaine/blackjack-advisor/internal/transport/openaicompat"
)

// RegisterBuiltins registers the Llama Stack and OpenAI-compatible
// transports. It is safe to call more than once.
func RegisterBuiltins() {
	if !IsRegistered(llamastack.TransportType) {
		RegisterFactory(Factory{
			Type:           llamastack.TransportType,
			Description:    "Llama Stack inference and agents API",
			Create:         createLlamaStack,
			ValidateConfig: validateBaseURL,
		})
	}
	if !IsRegistered(openaicompat.TransportType) {
		RegisterFactory(Factory{
			Type:           openaicompat.TransportType,
			Description:    "OpenAI-compatible chat completions (Ollama, vLLM)",
			Create:         createOpenAICompat,
			ValidateConfig: validateBaseURL,
		})
	}
}

func createLlamaStack(p Params) (ports.Transport, error) {
	opts := []llamastack.ClientOption{llamastack.WithMaxRetries(p.MaxRetries)}
	if p.Config.BaseURL != "" {
		opts = append(opts, llamastack.WithBaseURL(p.Config.BaseURL))
	}
	if p.HTTPClient != nil {
		opts = append(opts, llamastack.WithHTTPClient(p.HTTPClient))
	}
	return llamastack.NewClient(p.Config.APIKey, opts...), nil
}

func createOpenAICompat(p Params) (ports.Transport, error) {
	opts := []openaicompat.ClientOption{openaicompat.WithMaxRetries(p.MaxRetries)}
	if p.Config.BaseURL != "" {
		opts = append(opts, openaicompat.WithBaseURL(p.Config.BaseURL))
	}
	if p.HTTPClient != nil {
		opts = append(opts, openaicompat.WithHTTPClient(p.HTTPClient))
	}
	return openaicompat.NewClient(p.Config.APIKey, opts...), nil
}

func validateBaseURL(cfg config.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url: unsupported scheme %q", u.Scheme)
	}
	return nil
}
