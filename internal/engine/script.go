// SPDX-License-Identifier: MPL-2.0

// Package engine loads shell scripts as executable units, injects top-level
// variable overrides, and invokes their entrypoints.
//
// A script unit runs in two top-level passes inside an embedded mvdan/sh
// interpreter: the load pass executes the script body (firing any identity
// guard), then overrides are injected and the resolved entrypoint is invoked
// with the unit's arguments. The captured entrypoint output is the unit's
// return value.
package engine

import (
	"os"
	"path/filepath"
	"strings"

	"kogine/internal/config"
	"kogine/internal/scriptenv"
)

// MainFunc is the fallback entrypoint function name used when a script has
// no explicit entrypoint and no identity guard names one.
const MainFunc = "main"

// Script is a shell script prepared for execution as a unit.
type Script struct {
	// Path is the absolute path to the .sh file.
	Path string
	// Name is the unit name: the file name without the .sh suffix.
	Name string
	// Dir is the directory containing the script; it becomes the working
	// directory of the unit.
	Dir string
	// Config carries the unit's execution configuration. It may be nil
	// (load only), a *config.Config, or a *config.Stream that an
	// orchestrator expands before execution.
	Config config.Value
	// Entrypoint, when non-empty, names the function to invoke instead of
	// discovering one.
	Entrypoint string
	// Library loads the unit under its own name instead of the reserved
	// main identity, so identity guards do not fire.
	Library bool
}

// NewScript validates path and returns a script unit for it. The path must
// name an existing .sh file.
func NewScript(path string) (*Script, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ScriptPathError{Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ScriptPathError{Path: path, Err: ErrScriptNotFound}
	}
	if info.IsDir() || !strings.HasSuffix(abs, config.ScriptExt) {
		return nil, &ScriptPathError{Path: path, Err: ErrNotShellScript}
	}

	return &Script{
		Path: abs,
		Name: strings.TrimSuffix(filepath.Base(abs), config.ScriptExt),
		Dir:  filepath.Dir(abs),
	}, nil
}

// WithConfig returns a copy of the script bound to cfg. The original is not
// modified; orchestrators use this to fan one script out over many configs.
func (s *Script) WithConfig(cfg config.Value) *Script {
	clone := *s
	clone.Config = cfg
	return &clone
}

// Identity returns the name the unit runs under: the reserved main identity
// by default, or the unit name in library mode.
func (s *Script) Identity() string {
	if s.Library {
		return s.Name
	}
	return scriptenv.MainName
}

// UnitConfig returns the script's config when it holds a single discrete
// unit, or nil.
func (s *Script) UnitConfig() *config.Config {
	if cfg, ok := s.Config.(*config.Config); ok {
		return cfg
	}
	return nil
}
