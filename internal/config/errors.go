// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates the configuration source path does not exist.
	ErrConfigNotFound = errors.New("configuration source not found")

	// ErrStreamExhausted is returned by Stream.Pull once the underlying
	// sequence has ended. Every later pull returns it again.
	ErrStreamExhausted = errors.New("configuration stream exhausted")

	// ErrStreamClosed is returned to a running generator when the consumer
	// closes the stream before exhausting it.
	ErrStreamClosed = errors.New("configuration stream closed")
)

type (
	// NotFoundError reports a missing configuration source file.
	NotFoundError struct {
		Path string
	}

	// FormatError reports a configuration source that exists but cannot be
	// interpreted: unsupported extension, broken syntax, or a script that
	// follows neither loading convention.
	FormatError struct {
		Path   string
		Reason string
		Err    error
	}

	// FieldTypeError reports a configuration field holding a value of the
	// wrong dynamic shape.
	FieldTypeError struct {
		Field string
		Value any
		Want  string
	}

	// UnknownFieldError reports a configuration field outside the unit layout.
	UnknownFieldError struct {
		Field string
	}

	// StreamDecodeError reports a generator line that is not a JSON object.
	StreamDecodeError struct {
		Source string
		Line   int
		Err    error
	}

	// GeneratorError reports a config_gen function that failed or exited
	// with a non-zero status.
	GeneratorError struct {
		Script string
		Err    error
	}
)

// Error returns the error message for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("configuration source not found: %s", e.Path)
}

// Unwrap returns ErrConfigNotFound for use with errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrConfigNotFound }

// Error returns the error message for FormatError.
func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid configuration source %s", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *FormatError) Unwrap() error { return e.Err }

// Error returns the error message for FieldTypeError.
func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("configuration field %q holds %T, want %s", e.Field, e.Value, e.Want)
}

// Error returns the error message for UnknownFieldError.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown configuration field %q (known fields: overrides, args, kwargs, metadata)", e.Field)
}

// Error returns the error message for StreamDecodeError.
func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("%s: generator line %d is not a configuration object: %v", e.Source, e.Line, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *StreamDecodeError) Unwrap() error { return e.Err }

// Error returns the error message for GeneratorError.
func (e *GeneratorError) Error() string {
	return fmt.Sprintf("config_gen in %s failed: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error.
func (e *GeneratorError) Unwrap() error { return e.Err }
