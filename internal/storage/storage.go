// Package storage opens the recommendation journal selected by
// configuration.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
	"github.com/tjfontaine/blackjack-advisor/internal/storage/memory"
	"github.com/tjfontaine/blackjack-advisor/internal/storage/sqldb"
)

// Journal re-exports the journal port from core/ports.
type Journal = ports.Journal

// Open returns the journal for cfg.Type, or nil when journaling is
// disabled ("none" or empty).
func Open(cfg config.StorageConfig) (Journal, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(), nil
	case "sqlite", "postgres":
		if cfg.Type == "sqlite" && !strings.HasPrefix(cfg.DSN, "file:") && cfg.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
		store, err := sqldb.New(sqldb.Config{Driver: cfg.Type, DSN: cfg.DSN})
		if err != nil {
			return nil, fmt.Errorf("open %s journal: %w", cfg.Type, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
