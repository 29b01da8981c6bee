// Package registry maps transport type names from configuration to
// constructors, and builds the transport for every configured provider.
//
// Built-in transports are registered explicitly by RegisterBuiltins from
// cmd/advisor and tests, so there are no init() side effects.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
)

// Params is what a factory receives to build one transport.
type Params struct {
	Provider   domain.Provider
	Config     config.ProviderConfig
	MaxRetries int
	HTTPClient *http.Client
}

// Factory defines how to create a transport of a specific type.
type Factory struct {
	// Type is the transport type used in configuration
	// (e.g., "llamastack", "openai-compatible").
	Type string

	// Description provides a human-readable description of the transport.
	Description string

	// Create instantiates a transport from configuration.
	Create func(p Params) (ports.Transport, error)

	// ValidateConfig performs transport-specific configuration validation.
	// Optional: if nil, no additional validation is performed.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a transport factory. It panics on an empty type,
// a missing Create function, or a duplicate registration.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("transport factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("transport factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("transport factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
}

// GetFactory returns the factory for a transport type, if registered.
func GetFactory(transportType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[transportType]
	return f, ok
}

// IsRegistered returns true if a transport type is registered.
func IsRegistered(transportType string) bool {
	_, ok := GetFactory(transportType)
	return ok
}

// ListTypes returns all registered transport type names, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]Factory)
}

// Create builds a single transport using the factory registered for
// p.Config.Type.
func Create(p Params) (ports.Transport, error) {
	f, ok := GetFactory(p.Config.Type)
	if !ok {
		return nil, fmt.Errorf("unknown transport type: %s (registered types: %v)", p.Config.Type, ListTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(p.Config); err != nil {
			return nil, fmt.Errorf("invalid configuration for transport type %s: %w", p.Config.Type, err)
		}
	}

	return f.Create(p)
}

// Build creates a transport for every provider in cfg. All transports share
// httpClient; nil selects http.DefaultClient.
func Build(cfg *config.Config, httpClient *http.Client) (map[domain.Provider]ports.Transport, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	transports := make(map[domain.Provider]ports.Transport, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		provider, err := domain.ParseProvider(name)
		if err != nil {
			return nil, err
		}

		t, err := Create(Params{
			Provider:   provider,
			Config:     pc,
			MaxRetries: cfg.Inference.MaxRetries,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		transports[provider] = t
	}
	return transports, nil
}
