// Package config loads advisor configuration from config.yaml and ADVISOR_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

const (
	// DefaultPath is the config file read when no path is given.
	DefaultPath = "config.yaml"

	// EnvPrefix prefixes every environment override. "__" separates levels,
	// so ADVISOR_PROVIDERS__LS__MODEL sets providers.ls.model.
	EnvPrefix = "ADVISOR_"

	// DefaultBaseURL is used when a provider has no base URL.
	DefaultBaseURL = "http://localhost:8321"

	// DefaultAgentID is the agent that receives out-of-band notes.
	DefaultAgentID = "blackjack-ai-balance-notifications"
)

type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Inference InferenceConfig           `koanf:"inference"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Notify    NotifyConfig              `koanf:"notify"`
	Storage   StorageConfig             `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// Origin resolves path-only provider base URLs.
	Origin string `koanf:"origin"`
	// APIKeyHashes enables API key auth when non-empty (sha256 hex).
	APIKeyHashes []string `koanf:"api_key_hashes"`
}

// InferenceConfig holds call bounds and sampling shared by all providers.
type InferenceConfig struct {
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	TopP        float32       `koanf:"top_p"`
}

type ProviderConfig struct {
	Type    string `koanf:"type"` // llamastack, openai-compatible
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	Stream  bool   `koanf:"stream"`
}

type NotifyConfig struct {
	// Provider is the Llama Stack provider whose agents API receives notes.
	Provider string        `koanf:"provider"`
	AgentID  string        `koanf:"agent_id"`
	Timeout  time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Type string `koanf:"type"` // none, memory, sqlite, postgres
	DSN  string `koanf:"dsn"`
}

var defaults = map[string]any{
	"server.port":           8080,
	"server.origin":         "http://localhost:8080",
	"inference.timeout":     "20s",
	"inference.max_retries": 1,
	"inference.max_tokens":  200,
	"inference.temperature": 0.7,
	"inference.top_p":       0.9,

	"providers.ls.type":     "llamastack",
	"providers.ls.base_url": "http://localhost:8321",
	"providers.ls.model":    "mistral-small-24b-w8a8",
	"providers.ls.stream":   true,

	"providers.ollama.type":     "openai-compatible",
	"providers.ollama.base_url": "http://localhost:11434",
	"providers.ollama.model":    "llama3.1:8b",
	"providers.ollama.stream":   true,

	"providers.vllm.type":     "openai-compatible",
	"providers.vllm.base_url": "http://localhost:8000",
	"providers.vllm.model":    "mistralai/Mistral-Small-24B-Instruct-2501",
	"providers.vllm.stream":   true,

	"notify.provider": "ls",
	"notify.agent_id": DefaultAgentID,
	"notify.timeout":  "5s",

	"storage.type": "none",
	"storage.dsn":  "./data/advisor.db",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), applies environment overrides,
// then fills defaults for anything still unset. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = substituteEnvVars(p.APIKey)
		p.BaseURL = NormalizeBaseURL(p.BaseURL, cfg.Server.Origin)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every configured provider is one the advisor knows.
func (c *Config) Validate() error {
	for name, p := range c.Providers {
		if _, err := domain.ParseProvider(name); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
		if p.Type == "" {
			return fmt.Errorf("providers.%s: type is required", name)
		}
	}
	switch c.Storage.Type {
	case "", "none", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.type: unsupported value %q", c.Storage.Type)
	}
	return nil
}

// Provider returns the configuration for p and whether it exists.
func (c *Config) Provider(p domain.Provider) (ProviderConfig, bool) {
	pc, ok := c.Providers[string(p)]
	return pc, ok
}

// NormalizeBaseURL turns a configured base URL into an absolute server root
// without a trailing slash or /v1 suffix, since transports append their own
// versioned paths. Path-only values are resolved against origin and bare
// host:port values get an http:// scheme.
func NormalizeBaseURL(raw, origin string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return DefaultBaseURL
	case strings.HasPrefix(raw, "/"):
		raw = strings.TrimRight(origin, "/") + raw
	case !hasHTTPScheme(raw):
		raw = "http://" + raw
	}

	raw = strings.TrimRight(raw, "/")
	raw = strings.TrimSuffix(raw, "/v1")
	return strings.TrimRight(raw, "/")
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
