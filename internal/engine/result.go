// SPDX-License-Identifier: MPL-2.0

package engine

import "time"

// Result describes one completed script execution.
type Result struct {
	// Script is the absolute path of the executed script.
	Script string
	// Entrypoint is the function that was invoked.
	Entrypoint string
	// Value is the entrypoint's captured output with a single trailing
	// newline removed; it is the unit's return value.
	Value string
	// RunID identifies the engine invocation.
	RunID string
	// WorkerID is the worker slot the run executed on.
	WorkerID string
	// Duration is the wall time of the whole execution.
	Duration time.Duration
}
