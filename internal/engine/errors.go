// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"

	"kogine/internal/scriptenv"
)

var (
	// ErrScriptNotFound is the sentinel error wrapped by ScriptPathError when
	// the script file does not exist.
	ErrScriptNotFound = errors.New("script not found")
	// ErrNotShellScript is the sentinel error wrapped by ScriptPathError when
	// the path does not name a .sh file.
	ErrNotShellScript = errors.New("not a shell script")
	// ErrAlreadyExecuted is the sentinel error wrapped by StateError when a
	// script unit is executed a second time.
	ErrAlreadyExecuted = errors.New("script already executed")
	// ErrEntrypointNotFound is the sentinel error wrapped by
	// EntrypointNotFoundError.
	ErrEntrypointNotFound = errors.New("entrypoint not found")
	// ErrProtectedName is the sentinel error wrapped by ProtectedNameError.
	ErrProtectedName = errors.New("protected name")
	// ErrInvalidOverrideName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidOverrideName = errors.New("invalid override name")
	// ErrUnexpandedStream is returned when a script unit still carries a config
	// stream at execution time. Streams must be expanded into discrete configs
	// by an orchestrator before execution.
	ErrUnexpandedStream = errors.New("config stream must be expanded before execution")
)

type (
	// ScriptPathError is returned when a script path cannot serve as a script
	// unit. It wraps ErrScriptNotFound or ErrNotShellScript for errors.Is()
	// compatibility.
	ScriptPathError struct {
		Path string
		Err  error
	}

	// StateError is returned when an operation is invalid for the unit's
	// current lifecycle state. It wraps ErrAlreadyExecuted for errors.Is()
	// compatibility.
	StateError struct {
		State State
	}

	// LoadError is returned when the script's top-level execution fails
	// during the load phase.
	LoadError struct {
		Script string
		Err    error
	}

	// ProtectedNameError is returned when an override targets one of the
	// script unit attributes. It wraps ErrProtectedName for errors.Is()
	// compatibility.
	ProtectedNameError struct {
		Name string
	}

	// InvalidNameError is returned when an override name is not a valid shell
	// variable identifier. It wraps ErrInvalidOverrideName for errors.Is()
	// compatibility.
	InvalidNameError struct {
		Name string
	}

	// EntrypointNotFoundError is returned when no entrypoint can be resolved
	// for a script unit. Explicit holds the requested function name, if any.
	// It wraps ErrEntrypointNotFound for errors.Is() compatibility.
	EntrypointNotFoundError struct {
		Script   string
		Explicit string
	}

	// InvokeError is returned when the resolved entrypoint exits with a
	// nonzero status.
	InvokeError struct {
		Entrypoint string
		Status     int
	}
)

// Error returns the error message for ScriptPathError.
func (e *ScriptPathError) Error() string {
	return fmt.Sprintf("script %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is() checks.
func (e *ScriptPathError) Unwrap() error { return e.Err }

// Error returns the error message for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("script already executed (state %s): a script unit runs exactly once", e.State)
}

// Unwrap returns ErrAlreadyExecuted for errors.Is() checks.
func (e *StateError) Unwrap() error { return ErrAlreadyExecuted }

// Error returns the error message for LoadError.
func (e *LoadError) Error() string {
	return fmt.Sprintf("script %q: load failed: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error for errors.Is() checks.
func (e *LoadError) Unwrap() error { return e.Err }

// Error returns the error message for ProtectedNameError.
func (e *ProtectedNameError) Error() string {
	return fmt.Sprintf("cannot override %q: script unit attributes are read-only", e.Name)
}

// Unwrap returns ErrProtectedName for errors.Is() checks.
func (e *ProtectedNameError) Unwrap() error { return ErrProtectedName }

// Error returns the error message for InvalidNameError.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("cannot override %q: not a valid shell variable name", e.Name)
}

// Unwrap returns ErrInvalidOverrideName for errors.Is() checks.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidOverrideName }

// Error returns the error message for EntrypointNotFoundError.
func (e *EntrypointNotFoundError) Error() string {
	if e.Explicit != "" {
		return fmt.Sprintf("script %q: entrypoint %q is not defined", e.Script, e.Explicit)
	}
	return fmt.Sprintf(
		"script %q: no entrypoint found: expected a guarded call under [ \"$%s\" = %q ] or a %q function",
		e.Script, scriptenv.NameVar, scriptenv.MainName, MainFunc,
	)
}

// Unwrap returns ErrEntrypointNotFound for errors.Is() checks.
func (e *EntrypointNotFoundError) Unwrap() error { return ErrEntrypointNotFound }

// Error returns the error message for InvokeError.
func (e *InvokeError) Error() string {
	return fmt.Sprintf("entrypoint %q exited with status %d", e.Entrypoint, e.Status)
}
