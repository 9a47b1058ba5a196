// SPDX-License-Identifier: MPL-2.0

// Package scriptenv defines the ambient identity a script observes while the
// engine runs it: the attribute variables (__name__, __file__, ...), the
// protected names the injector must never overwrite, and helpers for turning
// Go values into shell source text.
package scriptenv

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// NameVar holds the execution identity of the running script.
	NameVar = "__name__"
	// FileVar holds the absolute path of the running script.
	FileVar = "__file__"
	// DirVar holds the directory of the running script.
	DirVar = "__dir__"
	// EngineVar identifies the engine and version that loaded the script.
	EngineVar = "__engine__"
	// RunVar holds the run ID of the current engine invocation.
	RunVar = "__run__"
	// WorkerVar holds the worker slot the script runs on.
	WorkerVar = "__worker__"

	// MainName is the identity a script sees when it is executed as the
	// primary script rather than loaded as a library.
	MainName = "__main__"

	// WorkerIDEnv carries the worker slot into child processes.
	WorkerIDEnv = "KOGINE_WORKER_ID"
	// RunIDEnv carries the run ID into child processes.
	RunIDEnv = "KOGINE_RUN_ID"

	// DefaultEngineTag identifies the engine when no version is injected.
	DefaultEngineTag = "kogine/dev"
)

// protected is the set of attribute variables owned by the engine.
var protected = map[string]struct{}{
	NameVar:   {},
	FileVar:   {},
	DirVar:    {},
	EngineVar: {},
	RunVar:    {},
	WorkerVar: {},
}

// IsProtected reports whether name is an engine-owned attribute variable
// that overrides may not target.
func IsProtected(name string) bool {
	_, ok := protected[name]
	return ok
}

// ProtectedNames returns the protected attribute names in sorted order.
func ProtectedNames() []string {
	names := make([]string, 0, len(protected))
	for name := range protected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attrs is the set of attribute variables defined for one script execution.
// They are exported into the script's environment before its top level runs.
type Attrs struct {
	Name   string
	File   string
	Dir    string
	Engine string
	Run    string
	Worker string
}

// Environ returns the attributes as KEY=VALUE pairs in a stable order,
// suitable for appending to a process environment.
func (a Attrs) Environ() []string {
	return []string{
		NameVar + "=" + a.Name,
		FileVar + "=" + a.File,
		DirVar + "=" + a.Dir,
		EngineVar + "=" + a.Engine,
		RunVar + "=" + a.Run,
		WorkerVar + "=" + a.Worker,
	}
}

// WorkerFromEnv returns the worker slot inherited from the environment,
// defaulting to "0" for the primary process.
func WorkerFromEnv() string {
	if v := os.Getenv(WorkerIDEnv); v != "" {
		return v
	}
	return "0"
}

// RunFromEnv returns the run ID inherited from the environment, or empty
// when this process starts a run of its own.
func RunFromEnv() string {
	return os.Getenv(RunIDEnv)
}

// IsIdentifier reports whether s is a valid shell variable name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// scalarText renders a single value as the raw (unquoted) text a shell
// variable should hold. Composite values are carried as JSON text so scripts
// can feed them to jq or similar tools.
func scalarText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case json.Number:
		return val.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("value %v is not representable in shell: %w", v, err)
		}
		return string(data), nil
	}
}

// Text renders a value as the raw text a shell variable or positional
// parameter should hold, without quoting.
func Text(v any) (string, error) {
	return scalarText(v)
}

// Literal renders a Go value as a single shell word, quoted so that the
// shell reads back exactly the rendered text.
func Literal(v any) (string, error) {
	text, err := scalarText(v)
	if err != nil {
		return "", err
	}
	quoted, err := syntax.Quote(text, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("value %q is not representable in shell: %w", text, err)
	}
	return quoted, nil
}

// Assignment renders a top-level variable assignment. Slices become indexed
// array assignments; every other value becomes a scalar assignment.
func Assignment(name string, v any) (string, error) {
	if !IsIdentifier(name) {
		return "", fmt.Errorf("invalid shell variable name %q", name)
	}
	if items, ok := v.([]any); ok {
		words := make([]string, 0, len(items))
		for _, item := range items {
			word, err := Literal(item)
			if err != nil {
				return "", err
			}
			words = append(words, word)
		}
		return name + "=(" + strings.Join(words, " ") + ")", nil
	}
	word, err := Literal(v)
	if err != nil {
		return "", err
	}
	return name + "=" + word, nil
}
