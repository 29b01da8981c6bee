// Package memory is an in-process recommendation journal. It is lost on
// restart and is meant for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// Store is an in-memory implementation of ports.Journal.
type Store struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	records []*ports.JournalRecord
}

var _ ports.Journal = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		ids: make(map[string]struct{}),
	}
}

func (s *Store) Append(ctx context.Context, rec *ports.JournalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[rec.ID]; exists {
		return fmt.Errorf("recommendation %s already exists", rec.ID)
	}

	s.ids[rec.ID] = struct{}{}
	s.records = append(s.records, clone(rec))
	return nil
}

// List returns copies of the matching records, newest first.
func (s *Store) List(ctx context.Context, opts ports.JournalListOptions) ([]*ports.JournalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ports.JournalRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if opts.Provider != "" && rec.Provider != opts.Provider {
			continue
		}
		if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
			continue
		}
		result = append(result, rec)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	start := max(opts.Offset, 0)
	if start >= len(result) {
		return []*ports.JournalRecord{}, nil
	}
	end := min(start+limit, len(result))

	page := make([]*ports.JournalRecord, 0, end-start)
	for _, rec := range result[start:end] {
		page = append(page, clone(rec))
	}
	return page, nil
}

func clone(rec *ports.JournalRecord) *ports.JournalRecord {
	c := *rec
	c.Snapshot = rec.Snapshot.Clone()
	if rec.TtftMs != nil {
		ttft := *rec.TtftMs
		c.TtftMs = &ttft
	}
	return &c
}

func (s *Store) Close() error {
	return nil
}
