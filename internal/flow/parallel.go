// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"kogine/internal/config"
	"kogine/internal/engine"
	"kogine/internal/scriptenv"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/interp"
)

type (
	// Parallel executes script tasks concurrently on a bounded worker pool.
	Parallel struct {
		scripts []*engine.Script
		opts    Options
	}

	// ProcessResult is the outcome of one parallel task.
	ProcessResult struct {
		// Script is the absolute path of the task's script.
		Script string
		// WorkerID is the worker slot the task ran on.
		WorkerID string
		// ExitCode is the task's exit status; zero on success.
		ExitCode int
		// Err is the task's failure, nil on success.
		Err error
		// Result is the full engine result of a pool-mode task. Subprocess
		// tasks leave it nil: return values do not cross the process
		// boundary, only the exit status does.
		Result *engine.Result
	}

	// job is one script/unit pair bound to a worker slot.
	job struct {
		script *engine.Script
		slot   string
	}
)

// NewParallel validates scripts and the dispatch mode and returns a
// parallel flow over them.
func NewParallel(scripts []*engine.Script, opts Options) (*Parallel, error) {
	if err := validScripts(scripts); err != nil {
		return nil, err
	}
	switch opts.Mode {
	case "", ModeSubprocess, ModePool:
	default:
		return nil, &UnknownModeError{Mode: opts.Mode}
	}
	return &Parallel{scripts: scripts, opts: opts}, nil
}

// Run expands stream configs into a task list, dispatches the tasks across
// a bounded worker pool, and blocks until every task has finished. A failed
// task fails the run but never interrupts its siblings: the returned slice
// always holds one outcome per task, in task order, and the returned error
// is the first failure among them.
func (p *Parallel) Run(ctx context.Context) ([]ProcessResult, error) {
	jobs, err := p.expand()
	if err != nil {
		return nil, err
	}

	workers := p.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	runID := p.opts.runID()
	logger := p.opts.logger()
	logger.Debug("starting parallel flow",
		"tasks", len(jobs), "workers", workers, "mode", p.mode(), "run", runID)

	results := make([]ProcessResult, len(jobs))
	jobCh := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				results[i] = p.dispatch(ctx, jobs[i], runID, logger)
			}
		}()
	}
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)
	wg.Wait()

	for i := range results {
		if results[i].Err != nil {
			return results, results[i].Err
		}
	}
	return results, nil
}

// expand eagerly drains stream configs into a flat job list, so every unit
// holds a worker slot before dispatch begins. Scripts with a discrete
// config or none contribute a single job.
func (p *Parallel) expand() ([]job, error) {
	var jobs []job
	for _, script := range p.scripts {
		stream, ok := script.Config.(*config.Stream)
		if !ok {
			jobs = append(jobs, job{script: script, slot: strconv.Itoa(len(jobs))})
			continue
		}
		units, err := stream.Collect(0)
		// Best-effort close; a fully drained stream has no producer left.
		_ = stream.Close()
		if err != nil {
			return nil, fmt.Errorf("expand configuration stream for %q: %w", script.Path, err)
		}
		for _, cfg := range units {
			jobs = append(jobs, job{script: script.WithConfig(cfg), slot: strconv.Itoa(len(jobs))})
		}
	}
	return jobs, nil
}

func (p *Parallel) mode() Mode {
	if p.opts.Mode == "" {
		return ModeSubprocess
	}
	return p.opts.Mode
}

func (p *Parallel) dispatch(ctx context.Context, j job, runID string, logger *log.Logger) ProcessResult {
	if p.mode() == ModePool {
		return p.runPooled(ctx, j, runID, logger)
	}
	return p.runSubprocess(ctx, j, runID, logger)
}

// runSubprocess re-invokes this binary against the job's script in a child
// process, serializing its unit to a temporary configuration source the
// child loads through the ordinary loader path. Only the exit status comes
// back.
func (p *Parallel) runSubprocess(ctx context.Context, j job, runID string, logger *log.Logger) ProcessResult {
	out := ProcessResult{Script: j.script.Path, WorkerID: j.slot}

	args := []string{"run", j.script.Path}
	if cfg := j.script.UnitConfig(); cfg != nil {
		path, cleanup, err := writeTempConfig(cfg)
		if err != nil {
			out.ExitCode = 1
			out.Err = &SpawnError{Script: j.script.Path, Err: err}
			return out
		}
		defer cleanup()
		args = append(args, "--config", path)
	}
	if j.script.Entrypoint != "" {
		args = append(args, "--entrypoint", j.script.Entrypoint)
	}

	bin := p.opts.Binary
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			out.ExitCode = 1
			out.Err = &SpawnError{Script: j.script.Path, Err: err}
			return out
		}
		bin = exe
	}

	base := p.opts.Environ
	if base == nil {
		base = os.Environ()
	}
	env := append(slices.Clip(base),
		scriptenv.WorkerIDEnv+"="+j.slot,
		scriptenv.RunIDEnv+"="+runID,
	)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = j.script.Dir
	cmd.Env = env
	cmd.Stdin = p.opts.Stdin
	cmd.Stdout = p.stdout()
	cmd.Stderr = p.stderr()

	logger.Debug("spawning worker", "script", j.script.Name, "worker", j.slot)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			out.ExitCode = exitErr.ExitCode()
			out.Err = &WorkerError{Script: j.script.Path, Worker: j.slot, Status: out.ExitCode}
		} else {
			out.ExitCode = 1
			out.Err = &SpawnError{Script: j.script.Path, Err: err}
		}
	}
	return out
}

// runPooled executes the job on an in-process worker. The unit runs in
// library mode: pooled tasks share the process, so none of them may borrow
// the reserved main identity, and identity guards do not fire.
func (p *Parallel) runPooled(ctx context.Context, j job, runID string, logger *log.Logger) ProcessResult {
	out := ProcessResult{Script: j.script.Path, WorkerID: j.slot}

	script := *j.script
	script.Library = true

	logger.Debug("executing pooled task", "script", script.Name, "worker", j.slot)
	res, err := engine.New(&script, p.opts.engineOptions(runID, j.slot)).Execute(ctx)
	out.Result = res
	if err != nil {
		// No process boundary, so the engine error passes through intact.
		out.ExitCode = exitStatus(err)
		out.Err = err
	}
	return out
}

func (p *Parallel) stdout() io.Writer {
	if p.opts.Stdout != nil {
		return p.opts.Stdout
	}
	return os.Stdout
}

func (p *Parallel) stderr() io.Writer {
	if p.opts.Stderr != nil {
		return p.opts.Stderr
	}
	return os.Stderr
}

// exitStatus maps an in-process execution error to the status a subprocess
// worker would have reported for the same failure.
func exitStatus(err error) int {
	if invokeErr, ok := errors.AsType[*engine.InvokeError](err); ok {
		return invokeErr.Status
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	return 1
}
