// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"errors"
	"fmt"
)

const (
	// ModeSubprocess runs parallel tasks in isolated child processes.
	ModeSubprocess FlowMode = "subprocess"
	// ModePool runs parallel tasks on an in-process worker pool.
	ModePool FlowMode = "pool"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidFlowMode is returned when a FlowMode value is not recognized.
	ErrInvalidFlowMode = errors.New("invalid flow mode")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidWorkers is returned when the worker count is negative.
	ErrInvalidWorkers = errors.New("invalid worker count")
)

type (
	// FlowMode selects how parallel flows dispatch their tasks.
	FlowMode string

	// InvalidFlowModeError is returned when a FlowMode value is not recognized.
	// It wraps ErrInvalidFlowMode for errors.Is() compatibility.
	InvalidFlowModeError struct {
		Value FlowMode
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not
	// recognized. It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidWorkersError is returned when the worker count is negative.
	// It wraps ErrInvalidWorkers for errors.Is() compatibility.
	InvalidWorkersError struct {
		Value int
	}
)

// IsValid reports whether the flow mode is recognized.
func (m FlowMode) IsValid() bool {
	return m == ModeSubprocess || m == ModePool
}

// Error returns the error message for InvalidFlowModeError.
func (e *InvalidFlowModeError) Error() string {
	return fmt.Sprintf("invalid flow mode %q: must be %q or %q", e.Value, ModeSubprocess, ModePool)
}

// Unwrap returns ErrInvalidFlowMode for errors.Is() checks.
func (e *InvalidFlowModeError) Unwrap() error { return ErrInvalidFlowMode }

// IsValid reports whether the color scheme is recognized.
func (c ColorScheme) IsValid() bool {
	return c == ColorSchemeAuto || c == ColorSchemeDark || c == ColorSchemeLight
}

// Error returns the error message for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q: must be one of %q, %q, %q",
		e.Value, ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() checks.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error returns the error message for InvalidWorkersError.
func (e *InvalidWorkersError) Error() string {
	return fmt.Sprintf("invalid worker count %d: must be zero (auto) or positive", e.Value)
}

// Unwrap returns ErrInvalidWorkers for errors.Is() checks.
func (e *InvalidWorkersError) Unwrap() error { return ErrInvalidWorkers }

type (
	// Settings is the tool configuration loaded from the settings file,
	// environment, and defaults.
	Settings struct {
		// Workers is the default parallel worker count (0 means NumCPU).
		Workers int `mapstructure:"workers"`
		// Mode is the default parallel dispatch mode.
		Mode FlowMode `mapstructure:"mode"`
		// Journal configures the run journal.
		Journal JournalSettings `mapstructure:"journal"`
		// UI configures terminal output.
		UI UISettings `mapstructure:"ui"`
	}

	// JournalSettings configures the append-only run journal.
	JournalSettings struct {
		// Enabled turns journaling on.
		Enabled bool `mapstructure:"enabled"`
		// Path locates the journal file; empty means the default location.
		Path string `mapstructure:"path"`
	}

	// UISettings configures terminal output.
	UISettings struct {
		// Verbose enables verbose output by default.
		Verbose bool `mapstructure:"verbose"`
		// ColorScheme selects the terminal color scheme.
		ColorScheme ColorScheme `mapstructure:"color_scheme"`
	}
)

// Validate checks constraints the CUE schema cannot express for values that
// arrive through environment overrides.
func (s *Settings) Validate() error {
	if s.Workers < 0 {
		return &InvalidWorkersError{Value: s.Workers}
	}
	if !s.Mode.IsValid() {
		return &InvalidFlowModeError{Value: s.Mode}
	}
	if !s.UI.ColorScheme.IsValid() {
		return &InvalidColorSchemeError{Value: s.UI.ColorScheme}
	}
	return nil
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Workers: 0,
		Mode:    ModeSubprocess,
		Journal: JournalSettings{Enabled: false, Path: ""},
		UI:      UISettings{Verbose: false, ColorScheme: ColorSchemeAuto},
	}
}
