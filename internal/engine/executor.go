// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"kogine/internal/config"
	"kogine/internal/journal"
	"kogine/internal/scriptenv"

	"github.com/google/uuid"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// StateCreated is the initial state of an executor.
	StateCreated State = "created"
	// StateLoaded means the script's top level ran but no entrypoint was
	// invoked (the unit had no config).
	StateLoaded State = "loaded"
	// StateInvoked means the entrypoint ran to completion.
	StateInvoked State = "invoked"
	// StateFailed means some phase of the execution failed.
	StateFailed State = "failed"
)

type (
	// State is the lifecycle state of an executor. Executions are one-shot:
	// once an executor leaves StateCreated it never runs again.
	State string

	// Clock abstracts time for deterministic tests.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	// Options configures an execution. The zero value runs against the
	// process's own stdio, environment, and the default registry, with
	// journaling off.
	Options struct {
		// Stdin is the script's standard input. Nil means no input.
		Stdin io.Reader
		// Stdout receives top-level script output. Nil means os.Stdout.
		Stdout io.Writer
		// Stderr receives script errors. Nil means os.Stderr.
		Stderr io.Writer
		// Environ is the base environment. Nil means os.Environ().
		Environ []string
		// Registry tracks loaded units. Nil means DefaultRegistry().
		Registry *Registry
		// Journal records the run. Nil disables journaling.
		Journal *journal.Journal
		// RunID overrides the generated run ID.
		RunID string
		// WorkerID overrides the worker slot inherited from the environment.
		WorkerID string
		// EngineTag overrides the engine identification attribute.
		EngineTag string
		// Clock overrides the system clock.
		Clock Clock
	}

	// Executor runs one script unit through its lifecycle: load the top
	// level, inject overrides, resolve the entrypoint, invoke it, and
	// capture its output as the unit's return value.
	Executor struct {
		script *Script
		opts   Options
		state  State
	}

	// systemClock is the default Clock.
	systemClock struct{}

	// phasedWriter routes interpreter stdout to the passthrough writer
	// during the load pass and to a capture buffer during the invoke pass.
	phasedWriter struct {
		mu  sync.Mutex
		dst io.Writer
	}
)

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Swap redirects subsequent writes to dst and returns the previous target.
func (w *phasedWriter) Swap(dst io.Writer) io.Writer {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.dst
	w.dst = dst
	return prev
}

func (w *phasedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	dst := w.dst
	w.mu.Unlock()
	return dst.Write(p)
}

// New returns an executor for s.
func New(s *Script, opts Options) *Executor {
	return &Executor{script: s, opts: opts, state: StateCreated}
}

// State returns the executor's lifecycle state.
func (x *Executor) State() State {
	return x.state
}

// Execute runs the script unit once.
//
// Without a config the unit is only loaded: the top level runs (firing any
// identity guard) and the result is nil. With a config the overrides are
// injected after the load pass, the entrypoint is resolved and invoked with
// the config's arguments, and its captured output becomes the result value.
//
// The unit's registry identity is installed for the duration of the run; the
// reserved main identity is restored afterwards whether or not the run
// succeeds.
func (x *Executor) Execute(ctx context.Context) (*Result, error) {
	if x.state != StateCreated {
		return nil, &StateError{State: x.state}
	}

	var cfg *config.Config
	switch v := x.script.Config.(type) {
	case nil:
	case *config.Config:
		cfg = v
	case *config.Stream:
		return nil, ErrUnexpandedStream
	}

	s := x.script
	clock := x.opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	start := clock.Now()

	runID := x.opts.RunID
	if runID == "" {
		runID = scriptenv.RunFromEnv()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	workerID := x.opts.WorkerID
	if workerID == "" {
		workerID = scriptenv.WorkerFromEnv()
	}
	engineTag := x.opts.EngineTag
	if engineTag == "" {
		engineTag = scriptenv.DefaultEngineTag
	}
	identity := s.Identity()

	record := func(status journal.Status, entrypoint string, exitCode int, execErr error) {
		e := journal.Entry{
			Script:     s.Path,
			Identity:   identity,
			RunID:      runID,
			WorkerID:   workerID,
			Entrypoint: entrypoint,
			Status:     status,
			ExitCode:   exitCode,
			StartedAt:  start,
			Duration:   clock.Since(start),
		}
		if execErr != nil {
			e.Error = execErr.Error()
		}
		if err := x.opts.Journal.Append(ctx, e); err != nil {
			slog.Warn("failed to record run in journal", "script", s.Path, "error", err)
		}
	}
	fail := func(entrypoint string, exitCode int, err error) error {
		x.state = StateFailed
		record(journal.StatusFailed, entrypoint, exitCode, err)
		return err
	}

	registry := x.opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	restore := registry.Install(identity, s)
	defer restore()

	// Load phase: parse and run the script's top level.
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fail("", 1, &LoadError{Script: s.Path, Err: err})
	}
	prog, err := syntax.NewParser().Parse(bytes.NewReader(data), s.Name)
	if err != nil {
		return nil, fail("", 1, &LoadError{Script: s.Path, Err: err})
	}
	an := Analyze(prog)

	attrs := scriptenv.Attrs{
		Name:   identity,
		File:   s.Path,
		Dir:    s.Dir,
		Engine: engineTag,
		Run:    runID,
		Worker: workerID,
	}
	baseEnv := x.opts.Environ
	if baseEnv == nil {
		baseEnv = os.Environ()
	}
	env := make([]string, 0, len(baseEnv)+6)
	env = append(env, baseEnv...)
	env = append(env, attrs.Environ()...)

	stdout := x.opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := x.opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	out := &phasedWriter{dst: stdout}

	ropts := []interp.RunnerOption{
		interp.Dir(s.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(x.opts.Stdin, out, stderr),
	}
	if cfg != nil && len(cfg.Args) > 0 {
		// Bind positional parameters so a guard forwarding "$@" sees the
		// unit's args during the load pass. "--" keeps dash-prefixed args
		// from being read as shell options.
		params := []string{"--"}
		for _, arg := range cfg.Args {
			text, err := scriptenv.Text(arg)
			if err != nil {
				return nil, fail("", 1, err)
			}
			params = append(params, text)
		}
		ropts = append(ropts, interp.Params(params...))
	}

	runner, err := interp.New(ropts...)
	if err != nil {
		return nil, fail("", 1, &LoadError{Script: s.Path, Err: err})
	}

	slog.Debug("loading script unit",
		"script", s.Path, "identity", identity, "run_id", runID, "worker", workerID)
	if err := runScript(ctx, runner, prog); err != nil {
		return nil, fail("", exitStatusOf(err), &LoadError{Script: s.Path, Err: err})
	}

	if cfg == nil {
		x.state = StateLoaded
		record(journal.StatusLoaded, "", 0, nil)
		slog.Debug("script loaded without config; skipping invocation",
			"script", s.Path, "user_vars", len(UserVars(runner.Vars)))
		return nil, nil
	}

	// Inject phase: apply top-level overrides to the live interpreter.
	frag, err := BuildOverrides(cfg.Overrides)
	if err != nil {
		return nil, fail("", 1, err)
	}
	if frag != "" {
		overrideProg, err := syntax.NewParser().Parse(strings.NewReader(frag), "overrides")
		if err != nil {
			return nil, fail("", 1, fmt.Errorf("render overrides: %w", err))
		}
		if err := runScript(ctx, runner, overrideProg); err != nil {
			return nil, fail("", exitStatusOf(err), fmt.Errorf("inject overrides: %w", err))
		}
		slog.Debug("injected overrides", "script", s.Path, "count", len(cfg.Overrides))
	}

	// Resolve phase: pick the entrypoint from the live function table.
	entrypoint, err := resolveEntrypoint(s, an, runner.Funcs)
	if err != nil {
		return nil, fail("", 1, err)
	}

	// Invoke phase: call the entrypoint, capturing its output as the value.
	binding := AnalyzeBinding(runner.Funcs[entrypoint])
	line, err := composeInvocation(entrypoint, binding, cfg)
	if err != nil {
		return nil, fail(entrypoint, 1, err)
	}
	call, err := syntax.NewParser().Parse(strings.NewReader(line), "entrypoint")
	if err != nil {
		return nil, fail(entrypoint, 1, fmt.Errorf("compose entrypoint call: %w", err))
	}

	slog.Debug("invoking entrypoint", "script", s.Path, "entrypoint", entrypoint)
	var capture bytes.Buffer
	out.Swap(&capture)
	runErr := runScript(ctx, runner, call)
	out.Swap(stdout)

	if runErr != nil {
		var es interp.ExitStatus
		if errors.As(runErr, &es) {
			invErr := &InvokeError{Entrypoint: entrypoint, Status: int(es)}
			return nil, fail(entrypoint, int(es), invErr)
		}
		return nil, fail(entrypoint, 1, fmt.Errorf("invoke %s: %w", entrypoint, runErr))
	}

	x.state = StateInvoked
	result := &Result{
		Script:     s.Path,
		Entrypoint: entrypoint,
		Value:      strings.TrimSuffix(capture.String(), "\n"),
		RunID:      runID,
		WorkerID:   workerID,
		Duration:   clock.Since(start),
	}
	record(journal.StatusCompleted, entrypoint, 0, nil)
	return result, nil
}

// Execute is a convenience that builds an executor for s and runs it.
func Execute(ctx context.Context, s *Script, opts Options) (*Result, error) {
	return New(s, opts).Execute(ctx)
}

// runScript runs a parsed program on the runner, treating a zero exit
// status as success.
func runScript(ctx context.Context, runner *interp.Runner, node syntax.Node) error {
	err := runner.Run(ctx, node)
	if err != nil {
		var es interp.ExitStatus
		if errors.As(err, &es) && es == 0 {
			return nil
		}
	}
	return err
}

// exitStatusOf extracts a shell exit status from err, defaulting to 1.
func exitStatusOf(err error) int {
	var es interp.ExitStatus
	if errors.As(err, &es) {
		return int(es)
	}
	return 1
}
