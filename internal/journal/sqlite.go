// SPDX-License-Identifier: MPL-2.0

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// schema is applied on every open; it only creates what is missing.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	script      TEXT NOT NULL,
	identity    TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	worker_id   TEXT NOT NULL,
	entrypoint  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// sqliteStore is the SQLite journal backend.
type sqliteStore struct {
	db *sql.DB
}

// openSQLite opens the database at path and ensures the schema exists.
func openSQLite(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	// SQLite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY errors under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (script, identity, run_id, worker_id, entrypoint, status, exit_code, error, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Script, e.Identity, e.RunID, e.WorkerID, e.Entrypoint, string(e.Status),
		e.ExitCode, e.Error, e.StartedAt.UTC().Format(time.RFC3339Nano), int64(e.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, script, identity, run_id, worker_id, entrypoint, status, exit_code, error, started_at, duration_ns
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			status   string
			started  string
			duration int64
		)
		if err := rows.Scan(&e.ID, &e.Script, &e.Identity, &e.RunID, &e.WorkerID,
			&e.Entrypoint, &status, &e.ExitCode, &e.Error, &started, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Status = Status(status)
		e.Duration = time.Duration(duration)
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			e.StartedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal entries: %w", err)
	}
	return entries, nil
}

func (s *sqliteStore) close() error {
	return s.db.Close()
}
