// SPDX-License-Identifier: MPL-2.0

// Package journal records script runs in an append-only local store.
//
// The default backend is a SQLite database; paths ending in .jsonl select a
// plain JSON Lines file instead, which is convenient for piping into jq.
// A nil *Journal is valid and discards everything, so callers never need to
// guard journaling sites.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type (
	// Status classifies how a recorded run ended.
	Status string

	// Entry is one recorded script run.
	Entry struct {
		// ID is assigned by the backend on append.
		ID int64 `json:"id,omitempty"`
		// Script is the absolute script path.
		Script string `json:"script"`
		// Identity is the name the unit ran under.
		Identity string `json:"identity"`
		// RunID is the engine invocation ID.
		RunID string `json:"run_id"`
		// WorkerID is the worker slot the run executed on.
		WorkerID string `json:"worker_id"`
		// Entrypoint is the invoked function, empty for load-only runs.
		Entrypoint string `json:"entrypoint,omitempty"`
		// Status classifies the outcome.
		Status Status `json:"status"`
		// ExitCode is the final exit status.
		ExitCode int `json:"exit_code"`
		// Error holds the failure message, if any.
		Error string `json:"error,omitempty"`
		// StartedAt is when the run began.
		StartedAt time.Time `json:"started_at"`
		// Duration is how long the run took.
		Duration time.Duration `json:"duration"`
	}

	// backend is the storage interface the Journal fronts.
	backend interface {
		append(ctx context.Context, e Entry) error
		recent(ctx context.Context, limit int) ([]Entry, error)
		close() error
	}

	// Journal is an append-only run recorder.
	Journal struct {
		store backend
	}
)

const (
	// StatusLoaded marks a load-only run that executed no entrypoint.
	StatusLoaded Status = "loaded"
	// StatusCompleted marks a run whose entrypoint returned success.
	StatusCompleted Status = "completed"
	// StatusFailed marks a run that failed in any phase.
	StatusFailed Status = "failed"
)

// jsonlExt selects the JSON Lines backend.
const jsonlExt = ".jsonl"

// Open creates or opens the journal at path, creating parent directories as
// needed.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	var (
		store backend
		err   error
	)
	if strings.HasSuffix(path, jsonlExt) {
		store, err = openJSONL(path)
	} else {
		store, err = openSQLite(path)
	}
	if err != nil {
		return nil, err
	}
	return &Journal{store: store}, nil
}

// Append records e. A nil journal discards the entry.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if j == nil {
		return nil
	}
	return j.store.append(ctx, e)
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// every entry. A nil journal returns nothing.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	return j.store.recent(ctx, limit)
}

// Close releases the underlying store. A nil journal is a no-op.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.store.close()
}
