// Package sqldb is a SQL implementation of the recommendation journal for
// SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/storage/dialect"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// Store is a SQL journal that supports multiple database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.Journal = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS recommendations (
id TEXT PRIMARY KEY,
provider TEXT NOT NULL,
model_id TEXT NOT NULL,
action TEXT NOT NULL,
rationale TEXT NOT NULL DEFAULT '',
latency_ms %[1]s NOT NULL,
ttft_ms %[1]s,
path TEXT NOT NULL,
extraction TEXT NOT NULL,
raw_text TEXT NOT NULL,
prompt_tokens INTEGER NOT NULL DEFAULT 0,
snapshot TEXT NOT NULL,
created_at %[2]s NOT NULL
)`, s.dialect.FloatType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_recommendations_provider ON recommendations(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// recordRow is the column layout of the recommendations table.
type recordRow struct {
	ID           string          `db:"id"`
	Provider     string          `db:"provider"`
	ModelID      string          `db:"model_id"`
	Action       string          `db:"action"`
	Rationale    string          `db:"rationale"`
	LatencyMs    float64         `db:"latency_ms"`
	TtftMs       sql.NullFloat64 `db:"ttft_ms"`
	Path         string          `db:"path"`
	Extraction   string          `db:"extraction"`
	RawText      string          `db:"raw_text"`
	PromptTokens int             `db:"prompt_tokens"`
	Snapshot     string          `db:"snapshot"`
	CreatedAt    time.Time       `db:"created_at"`
}

func toRow(rec *ports.JournalRecord) (*recordRow, error) {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := &recordRow{
		ID:           rec.ID,
		Provider:     string(rec.Provider),
		ModelID:      rec.ModelID,
		Action:       string(rec.Action),
		Rationale:    rec.Rationale,
		LatencyMs:    rec.LatencyMs,
		Path:         string(rec.Path),
		Extraction:   string(rec.Extraction),
		RawText:      rec.RawText,
		PromptTokens: rec.PromptTokens,
		Snapshot:     string(snapshot),
		CreatedAt:    rec.CreatedAt.UTC(),
	}
	if rec.TtftMs != nil {
		row.TtftMs = sql.NullFloat64{Float64: *rec.TtftMs, Valid: true}
	}
	return row, nil
}

func (r *recordRow) toRecord() (*ports.JournalRecord, error) {
	rec := &ports.JournalRecord{
		Recommendation: domain.Recommendation{
			ID:         r.ID,
			Provider:   domain.Provider(r.Provider),
			ModelID:    r.ModelID,
			Action:     domain.Action(r.Action),
			Rationale:  r.Rationale,
			LatencyMs:  r.LatencyMs,
			Path:       domain.TransportPath(r.Path),
			Extraction: domain.Extraction(r.Extraction),
			CreatedAt:  r.CreatedAt,
		},
		RawText:      r.RawText,
		PromptTokens: r.PromptTokens,
	}
	if r.TtftMs.Valid {
		v := r.TtftMs.Float64
		rec.TtftMs = &v
	}
	if err := json.Unmarshal([]byte(r.Snapshot), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return rec, nil
}

// Append stores rec. IDs must be unique.
func (s *Store) Append(ctx context.Context, rec *ports.JournalRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}

	query := s.dialect.Rebind(`INSERT INTO recommendations
(id, provider, model_id, action, rationale, latency_ms, ttft_ms, path, extraction, raw_text, prompt_tokens, snapshot, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		row.ID, row.Provider, row.ModelID, row.Action, row.Rationale, row.LatencyMs, row.TtftMs,
		row.Path, row.Extraction, row.RawText, row.PromptTokens, row.Snapshot, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append recommendation: %w", err)
	}
	return nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ports.JournalListOptions) ([]*ports.JournalRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, string(opts.Provider))
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := max(opts.Offset, 0)

	var b strings.Builder
	b.WriteString(`SELECT id, provider, model_id, action, rationale, latency_ms, ttft_ms, path, extraction,
raw_text, prompt_tokens, snapshot, created_at FROM recommendations`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}

	records := make([]*ports.JournalRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
