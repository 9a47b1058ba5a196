// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"context"
	"errors"
	"fmt"

	"kogine/internal/config"
	"kogine/internal/engine"
)

// Sequential executes scripts one after another in this process.
type Sequential struct {
	scripts []*engine.Script
	opts    Options
}

// NewSequential validates scripts and returns a sequential flow over them.
func NewSequential(scripts []*engine.Script, opts Options) (*Sequential, error) {
	if err := validScripts(scripts); err != nil {
		return nil, err
	}
	return &Sequential{scripts: scripts, opts: opts}, nil
}

// Run executes every script in order, fanning a stream config out to one
// execution per pulled unit. The first failure aborts the run: remaining
// scripts and units are untouched, and the error is returned alongside the
// results collected so far.
func (s *Sequential) Run(ctx context.Context) ([]*engine.Result, error) {
	runID := s.opts.runID()
	logger := s.opts.logger()
	logger.Debug("starting sequential flow", "scripts", len(s.scripts), "run", runID)

	var results []*engine.Result
	for _, script := range s.scripts {
		stream, ok := script.Config.(*config.Stream)
		if !ok {
			res, err := s.execute(ctx, script, runID)
			if res != nil {
				results = append(results, res)
			}
			if err != nil {
				return results, err
			}
			continue
		}

		for unit := 0; ; unit++ {
			cfg, err := stream.Pull()
			if errors.Is(err, config.ErrStreamExhausted) {
				break
			}
			if err != nil {
				// Best-effort close; the pull already failed.
				_ = stream.Close()
				return results, fmt.Errorf("pull configuration unit %d for %q: %w", unit, script.Path, err)
			}

			logger.Debug("executing unit", "script", script.Name, "unit", unit)
			res, err := s.execute(ctx, script.WithConfig(cfg), runID)
			if res != nil {
				results = append(results, res)
			}
			if err != nil {
				// Release a generator still blocked on the stream.
				_ = stream.Close()
				return results, err
			}
		}
		_ = stream.Close()
	}
	return results, nil
}

// execute runs one script/unit pair through the engine. Load-only
// executions produce no result.
func (s *Sequential) execute(ctx context.Context, script *engine.Script, runID string) (*engine.Result, error) {
	return engine.New(script, s.opts.engineOptions(runID, "")).Execute(ctx)
}
