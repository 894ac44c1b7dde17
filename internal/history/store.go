// Package history records invocation outcomes in a local SQLite ledger so
// the status server and the history CLI command can answer "what ran, when,
// and how did it go" without scraping logs.
package history

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/adocbuilder/internal/errors"
)

// Invocation is one recorded orchestrator run.
type Invocation struct {
	ID         string
	ConfigHash string
	Mode       string
	Parallel   bool
	Backends   []string
	Status     string // success or failed
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
}

// Store persists invocations in SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the ledger at dbPath. Use ":memory:" for tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.HistoryError("open", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.HistoryError("init", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		config_hash TEXT,
		mode TEXT NOT NULL,
		parallel INTEGER NOT NULL,
		backends TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_started_at ON invocations(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one invocation to the ledger.
func (s *Store) Record(ctx context.Context, inv Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO invocations (id, config_hash, mode, parallel, backends, status, error, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		inv.ID, inv.ConfigHash, inv.Mode, boolToInt(inv.Parallel), strings.Join(inv.Backends, ","),
		inv.Status, inv.Error, inv.StartedAt.Unix(), inv.Duration.Milliseconds(),
	)
	if err != nil {
		return errors.HistoryError("insert", err)
	}
	return nil
}

// Recent returns up to limit invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, config_hash, mode, parallel, backends, status, error, started_at, duration_ms FROM invocations ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.HistoryError("query", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var (
			inv        Invocation
			parallel   int
			backends   string
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&inv.ID, &inv.ConfigHash, &inv.Mode, &parallel, &backends, &inv.Status, &inv.Error, &startedAt, &durationMS); err != nil {
			return nil, errors.HistoryError("scan", err)
		}
		inv.Parallel = parallel != 0
		if backends != "" {
			inv.Backends = strings.Split(backends, ",")
		}
		inv.StartedAt = time.Unix(startedAt, 0).UTC()
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
