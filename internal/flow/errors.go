// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoScripts is returned when a flow is constructed without scripts.
	ErrNoScripts = errors.New("flow has no scripts")
	// ErrUnknownMode is the sentinel error wrapped by UnknownModeError.
	ErrUnknownMode = errors.New("unknown dispatch mode")
	// ErrWorkerFailed is the sentinel error wrapped by WorkerError.
	ErrWorkerFailed = errors.New("worker failed")
)

type (
	// UnknownModeError is returned when a parallel flow names a dispatch
	// mode that does not exist. It wraps ErrUnknownMode for errors.Is()
	// compatibility.
	UnknownModeError struct {
		Mode Mode
	}

	// WorkerError reports a parallel task whose execution exited nonzero.
	// It wraps ErrWorkerFailed for errors.Is() compatibility.
	WorkerError struct {
		Script string
		Worker string
		Status int
	}

	// SpawnError reports a subprocess worker that could not be started at
	// all, as opposed to one that ran and failed.
	SpawnError struct {
		Script string
		Err    error
	}
)

// Error returns the error message for UnknownModeError.
func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown dispatch mode %q (expected: %s, %s)", e.Mode, ModeSubprocess, ModePool)
}

// Unwrap returns ErrUnknownMode for errors.Is() checks.
func (e *UnknownModeError) Unwrap() error { return ErrUnknownMode }

// Error returns the error message for WorkerError.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s: script %q exited with status %d", e.Worker, e.Script, e.Status)
}

// Unwrap returns ErrWorkerFailed for errors.Is() checks.
func (e *WorkerError) Unwrap() error { return ErrWorkerFailed }

// Error returns the error message for SpawnError.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start worker for script %q: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error for errors.Is() checks.
func (e *SpawnError) Unwrap() error { return e.Err }
