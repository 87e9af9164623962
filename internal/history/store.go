// Package history persists one record per build attempt so operators
// can audit what was built, when, and why it failed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// Record is one build attempt.
type Record struct {
	ID         int64
	Dataset    string
	ParamsHash string
	Status     string // "ready", "failed", "cancelled"
	DocCount   int
	Duration   time.Duration
	Error      string
	StartedAt  time.Time
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One writer at a time is plenty for build bookkeeping.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset TEXT NOT NULL,
		params_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		doc_count INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_dataset ON builds(dataset, started_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Append records one build attempt.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (dataset, params_hash, status, doc_count, duration_ms, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Dataset, rec.ParamsHash, rec.Status, rec.DocCount,
		rec.Duration.Milliseconds(), rec.Error, rec.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append build record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first. An empty dataset
// name returns records for all datasets.
func (s *Store) List(ctx context.Context, dataset string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, dataset, params_hash, status, doc_count, duration_ms, error, started_at
		FROM builds
	`
	args := []any{}
	if dataset != "" {
		query += " WHERE dataset = ?"
		args = append(args, dataset)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query build history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		var startedAt string
		if err := rows.Scan(&rec.ID, &rec.Dataset, &rec.ParamsHash, &rec.Status,
			&rec.DocCount, &durationMS, &rec.Error, &startedAt); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
