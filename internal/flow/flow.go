// SPDX-License-Identifier: MPL-2.0

// Package flow orchestrates the execution of script sets: sequentially in
// this process, or in parallel across isolated workers.
//
// A flow takes prepared script units, each optionally carrying a discrete
// configuration or a lazy stream of them, and drives the execution engine
// once per script/unit pair. Sequential flows abort on the first failure;
// parallel flows let every task finish and report the first failure
// afterwards.
package flow

import (
	"context"
	"io"
	"os"

	"kogine/internal/engine"
	"kogine/internal/journal"
	"kogine/internal/scriptenv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// ModeSubprocess isolates each parallel task in a child process that
	// re-invokes this binary. It is the default.
	ModeSubprocess Mode = "subprocess"
	// ModePool runs parallel tasks on in-process worker goroutines in
	// library mode. Use it where spawning processes is unavailable or too
	// expensive.
	ModePool Mode = "pool"
)

type (
	// Mode selects how a parallel flow isolates its tasks.
	Mode string

	// Options configures a flow. The zero value runs sequentially against
	// the process's own stdio and environment, with journaling off.
	Options struct {
		// Parallel dispatches tasks to isolated workers instead of
		// executing them one after another.
		Parallel bool
		// Workers bounds concurrent parallel tasks. Zero means
		// runtime.NumCPU().
		Workers int
		// Mode selects the parallel isolation strategy. Empty means
		// ModeSubprocess. Ignored for sequential flows.
		Mode Mode
		// Binary is the executable re-invoked by subprocess workers.
		// Empty means the running binary, via os.Executable().
		Binary string

		// Stdin is the executions' standard input. Nil means no input.
		Stdin io.Reader
		// Stdout receives execution output. Nil means os.Stdout.
		Stdout io.Writer
		// Stderr receives execution errors. Nil means os.Stderr.
		Stderr io.Writer
		// Environ is the base environment. Nil means os.Environ().
		Environ []string

		// Registry tracks units loaded by in-process executions. Nil means
		// the process-wide default.
		Registry *engine.Registry
		// Journal records in-process executions. Nil disables journaling.
		Journal *journal.Journal
		// RunID overrides the flow-wide run ID shared by every task.
		RunID string
		// EngineTag overrides the engine identification attribute.
		EngineTag string
		// Logger overrides the flow's logger.
		Logger *log.Logger
		// Clock overrides the system clock for in-process executions.
		Clock engine.Clock
	}

	// Flow bundles a script set with options and dispatches to the
	// sequential or parallel orchestrator.
	Flow struct {
		seq *Sequential
		par *Parallel
	}

	// Report is the outcome of a flow run. Exactly one of the two slices
	// is populated, matching the flow's dispatch.
	Report struct {
		// Results holds the execution results of a sequential run, in
		// execution order, truncated at the first failure.
		Results []*engine.Result
		// Processes holds the per-task outcomes of a parallel run, in
		// task order.
		Processes []ProcessResult
	}
)

// New validates scripts and returns a flow dispatching on opts.Parallel.
func New(scripts []*engine.Script, opts Options) (*Flow, error) {
	if opts.Parallel {
		par, err := NewParallel(scripts, opts)
		if err != nil {
			return nil, err
		}
		return &Flow{par: par}, nil
	}
	seq, err := NewSequential(scripts, opts)
	if err != nil {
		return nil, err
	}
	return &Flow{seq: seq}, nil
}

// Run executes the flow and reports every outcome it produced, alongside
// the run's first error if any task failed.
func (f *Flow) Run(ctx context.Context) (Report, error) {
	if f.par != nil {
		procs, err := f.par.Run(ctx)
		return Report{Processes: procs}, err
	}
	results, err := f.seq.Run(ctx)
	return Report{Results: results}, err
}

// validScripts rejects empty script sets and scripts whose file vanished
// between preparation and flow construction, so runs fail before any task
// has started.
func validScripts(scripts []*engine.Script) error {
	if len(scripts) == 0 {
		return ErrNoScripts
	}
	for _, s := range scripts {
		if _, err := os.Stat(s.Path); err != nil {
			return &engine.ScriptPathError{Path: s.Path, Err: engine.ErrScriptNotFound}
		}
	}
	return nil
}

// logger returns the configured logger or a stderr default.
func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: "flow"})
}

// engineOptions adapts flow options to a single in-process execution.
func (o Options) engineOptions(runID, workerID string) engine.Options {
	return engine.Options{
		Stdin:     o.Stdin,
		Stdout:    o.Stdout,
		Stderr:    o.Stderr,
		Environ:   o.Environ,
		Registry:  o.Registry,
		Journal:   o.Journal,
		RunID:     runID,
		WorkerID:  workerID,
		EngineTag: o.EngineTag,
		Clock:     o.Clock,
	}
}

// runID returns the configured flow-wide run ID or a fresh one.
func (o Options) runID() string {
	if o.RunID != "" {
		return o.RunID
	}
	if v := scriptenv.RunFromEnv(); v != "" {
		return v
	}
	return uuid.NewString()
}
