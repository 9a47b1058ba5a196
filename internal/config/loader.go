// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kogine/internal/scriptenv"

	"github.com/google/uuid"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// GeneratorFunc is the function a script source defines to yield a stream.
	GeneratorFunc = "config_gen"
	// StaticVar is the variable a script source assigns to define one unit.
	StaticVar = "CONFIG"
	// ScriptExt marks script-backed configuration sources.
	ScriptExt = ".sh"
)

type (
	// LoadOptions adjusts how configuration sources are loaded.
	LoadOptions struct {
		// Stdout receives top-level output of script-backed sources
		// (defaults to os.Stdout).
		Stdout io.Writer
		// Stderr receives script diagnostics (defaults to os.Stderr).
		Stderr io.Writer
		// Environ replaces the ambient environment when non-nil.
		Environ []string
		// EngineTag is the engine identity scripts observe in __engine__.
		EngineTag string
		// RunID ties the load to an engine run; generated when empty.
		RunID string
	}

	// lineSource decodes the JSON Lines output of a running config_gen
	// function, one unit per pull.
	lineSource struct {
		r    *bufio.Reader
		path string
		line int
	}

	// swapWriter redirects a live interpreter's stdout between the
	// passthrough writer and a generator pipe.
	swapWriter struct {
		mu  sync.Mutex
		dst io.Writer
	}
)

// Load resolves a configuration source file into a single unit or a stream.
//
// Script sources (.sh) are executed as library units: the file runs top to
// bottom under its own identity, then the loader looks for a config_gen
// function (stream source) or a CONFIG variable (single unit), in that
// order. Static sources (.json, .cue, .toml, .yaml) are decoded without
// running anything.
//
// For stream results the given ctx must stay alive until the stream is
// exhausted or closed; the generator runs under it.
func Load(ctx context.Context, path string, opts LoadOptions) (Value, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve configuration path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, &NotFoundError{Path: path}
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ScriptExt:
		return loadScript(ctx, abs, opts)
	case ".json":
		return loadJSON(abs)
	case ".cue":
		return loadCUE(abs)
	case ".toml":
		return loadTOML(abs)
	case ".yaml", ".yml":
		return loadYAML(abs)
	default:
		return nil, &FormatError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported source format %q", filepath.Ext(abs)),
		}
	}
}

// loadScript runs a script source as a library unit and applies the two
// loading conventions.
func loadScript(ctx context.Context, path string, opts LoadOptions) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration script: %w", err)
	}
	parser := syntax.NewParser()
	prog, err := parser.Parse(bytes.NewReader(data), path)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "script syntax error", Err: err}
	}

	engineTag := opts.EngineTag
	if engineTag == "" {
		engineTag = scriptenv.DefaultEngineTag
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	attrs := scriptenv.Attrs{
		Name:   strings.TrimSuffix(filepath.Base(path), ScriptExt),
		File:   path,
		Dir:    filepath.Dir(path),
		Engine: engineTag,
		Run:    runID,
		Worker: scriptenv.WorkerFromEnv(),
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	environ = append(append([]string{}, environ...), attrs.Environ()...)

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	out := &swapWriter{dst: stdout}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, out, stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	if err := runQuiet(ctx, runner, prog); err != nil {
		return nil, fmt.Errorf("configuration script %s failed: %w", path, err)
	}

	if _, ok := runner.Funcs[GeneratorFunc]; ok {
		return generatorStream(ctx, runner, parser, out, path)
	}

	if v, ok := runner.Vars[StaticVar]; ok {
		if v.Kind != expand.String {
			return nil, &FormatError{Path: path, Reason: StaticVar + " must hold a JSON object as a string"}
		}
		cfg, err := decodeUnitJSON([]byte(v.Str))
		if err != nil {
			if isUnitError(err) {
				return nil, err
			}
			return nil, &FormatError{Path: path, Reason: StaticVar + " does not hold a JSON object", Err: err}
		}
		return cfg, nil
	}

	return nil, &FormatError{
		Path: path,
		Reason: fmt.Sprintf("script defines neither a %s function nor a %s variable",
			GeneratorFunc, StaticVar),
	}
}

// generatorStream starts config_gen with its stdout connected to a pipe and
// returns the stream that pulls units from it. The generator is started
// exactly once and only runs as far as the consumer pulls.
func generatorStream(ctx context.Context, runner *interp.Runner, parser *syntax.Parser, out *swapWriter, path string) (*Stream, error) {
	call, err := parser.Parse(strings.NewReader(GeneratorFunc+"\n"), GeneratorFunc)
	if err != nil {
		return nil, fmt.Errorf("compose generator call: %w", err)
	}

	genCtx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	out.Swap(pw)
	go func() {
		defer cancel()
		if err := runQuiet(genCtx, runner, call); err != nil {
			_ = pw.CloseWithError(&GeneratorError{Script: path, Err: err})
			return
		}
		_ = pw.Close()
	}()

	stream := NewStream(&lineSource{r: bufio.NewReader(pr), path: path})
	stream.closer = func() error {
		// Cancel first so a generator blocked mid-loop stops producing, then
		// fail its pipe so a blocked write unblocks.
		cancel()
		return pr.CloseWithError(ErrStreamClosed)
	}
	return stream, nil
}

// runQuiet runs a program, mapping an explicit zero exit status to success.
func runQuiet(ctx context.Context, runner *interp.Runner, node syntax.Node) error {
	err := runner.Run(ctx, node)
	var status interp.ExitStatus
	if errors.As(err, &status) && status == 0 {
		return nil
	}
	return err
}

// isUnitError reports whether err already carries unit-layout context and
// should surface without re-wrapping.
func isUnitError(err error) bool {
	var fieldErr *FieldTypeError
	var unknownErr *UnknownFieldError
	return errors.As(err, &fieldErr) || errors.As(err, &unknownErr)
}

// Next implements Source over generator output lines.
func (s *lineSource) Next() (*Config, error) {
	for {
		text, err := s.r.ReadString('\n')
		if text != "" {
			s.line++
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			cfg, derr := decodeUnitJSON([]byte(trimmed))
			if derr != nil {
				if isUnitError(derr) {
					return nil, derr
				}
				return nil, &StreamDecodeError{Source: s.path, Line: s.line, Err: derr}
			}
			return cfg, nil
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			if errors.Is(err, io.ErrClosedPipe) {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
	}
}

// Write implements io.Writer against the current target. The lock is not
// held across the write so a blocked generator cannot stall Swap.
func (w *swapWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	dst := w.dst
	w.mu.Unlock()
	return dst.Write(p)
}

// Swap redirects subsequent writes to dst.
func (w *swapWriter) Swap(dst io.Writer) {
	w.mu.Lock()
	w.dst = dst
	w.mu.Unlock()
}
