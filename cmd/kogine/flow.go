// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"kogine/internal/config"
	"kogine/internal/engine"
	"kogine/internal/flow"
	"kogine/internal/issue"
	"kogine/pkg/flowfile"

	"github.com/spf13/cobra"
)

var (
	// flowCmd groups the multi-script orchestrators.
	flowCmd = &cobra.Command{
		Use:     "flow",
		Aliases: []string{"workflow"},
		Short:   "Run script sets sequentially or in parallel",
		Long: `Flow drives a set of script units through the execution engine, either
one after another in this process or fanned out to parallel workers.

Each script may carry its own configuration source; stream sources fan
out into one run per configuration unit. Sequential flows abort on the
first failure, parallel flows let every task finish and report the first
failure afterwards.`,
	}

	flowSequentialCmd = &cobra.Command{
		Use:   "sequential <script>...",
		Short: "Run scripts in order, aborting on the first failure",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFlowSequential,
	}

	flowParallelCmd = &cobra.Command{
		Use:   "parallel <script>...",
		Short: "Fan scripts out to isolated parallel workers",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFlowParallel,
	}

	flowRunCmd = &cobra.Command{
		Use:   "run <flowfile>",
		Short: "Run the flow a flowfile declares",
		Long: `Run executes the tasks declared in a CUE flowfile, in declaration order.
The flowfile picks the orchestration mode and worker bound; both can be
overridden on the command line.`,
		Args: cobra.ExactArgs(1),
		RunE: runFlowRun,
	}
)

func init() {
	flowSequentialCmd.Flags().StringP("config", "c", "", "configuration source applied to every script")

	flowParallelCmd.Flags().StringP("config", "c", "", "configuration source applied to every script")
	flowParallelCmd.Flags().Int("workers", 0, "parallel workers (0 means all CPUs)")
	flowParallelCmd.Flags().String("mode", "", "worker isolation: subprocess or pool")

	flowRunCmd.Flags().Int("workers", 0, "override the flowfile's worker bound")
	flowRunCmd.Flags().String("mode", "", "worker isolation: subprocess or pool")

	flowCmd.AddCommand(flowSequentialCmd)
	flowCmd.AddCommand(flowParallelCmd)
	flowCmd.AddCommand(flowRunCmd)
}

func runFlowSequential(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	ctx := cmd.Context()

	scripts, err := prepareScripts(ctx, args, configFile)
	if err != nil {
		return reportError(cmd, err)
	}

	jnl := openJournal()
	defer jnl.Close()

	return executeFlow(ctx, cmd, scripts, flow.Options{
		Journal:   jnl,
		EngineTag: engineTag(),
	})
}

func runFlowParallel(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	workers, _ := cmd.Flags().GetInt("workers")
	mode, _ := cmd.Flags().GetString("mode")
	ctx := cmd.Context()

	scripts, err := prepareScripts(ctx, args, configFile)
	if err != nil {
		return reportError(cmd, err)
	}

	if workers == 0 {
		workers = toolSettings.Workers
	}
	if mode == "" {
		mode = string(toolSettings.Mode)
	}

	jnl := openJournal()
	defer jnl.Close()

	return executeFlow(ctx, cmd, scripts, flow.Options{
		Parallel:  true,
		Workers:   workers,
		Mode:      flow.Mode(mode),
		Journal:   jnl,
		EngineTag: engineTag(),
	})
}

// runFlowRun loads a flowfile and executes its tasks with the declared
// orchestration, letting command-line flags override workers and isolation.
func runFlowRun(cmd *cobra.Command, args []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	mode, _ := cmd.Flags().GetString("mode")
	ctx := cmd.Context()

	ff, err := flowfile.Parse(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return reportIssueError(cmd, err, issue.FlowfileNotFoundId, "")
		}
		return reportIssueError(cmd, err, issue.FlowfileParseErrorId, "")
	}

	scripts := make([]*engine.Script, 0, len(ff.Tasks))
	for _, task := range ff.Tasks {
		if verbose && task.Description != "" {
			fmt.Fprintf(os.Stdout, "%s %s\n", ValueStyle.Render(task.Script.String()), task.Description)
		}

		script, err := engine.NewScript(ff.ResolvePath(task.Script.String()))
		if err != nil {
			return reportError(cmd, err)
		}
		script.Entrypoint = task.Entrypoint

		if task.Config != "" {
			value, err := config.Load(ctx, ff.ResolvePath(task.Config), config.LoadOptions{EngineTag: engineTag()})
			if err != nil {
				return reportError(cmd, err)
			}
			script = script.WithConfig(value)
		}

		scripts = append(scripts, script)
	}

	if workers == 0 {
		workers = ff.Workers
	}
	if workers == 0 {
		workers = toolSettings.Workers
	}
	if mode == "" {
		mode = string(toolSettings.Mode)
	}

	jnl := openJournal()
	defer jnl.Close()

	return executeFlow(ctx, cmd, scripts, flow.Options{
		Parallel:  !ff.Sequential(),
		Workers:   workers,
		Mode:      flow.Mode(mode),
		Journal:   jnl,
		EngineTag: engineTag(),
	})
}

// prepareScripts builds one script unit per path, loading the shared
// configuration source fresh for each: a stream source can only be pulled
// once, so every script needs its own instance.
func prepareScripts(ctx context.Context, paths []string, configFile string) ([]*engine.Script, error) {
	scripts := make([]*engine.Script, 0, len(paths))
	for _, path := range paths {
		script, err := engine.NewScript(path)
		if err != nil {
			return nil, err
		}
		if configFile != "" {
			value, err := config.Load(ctx, configFile, config.LoadOptions{EngineTag: engineTag()})
			if err != nil {
				return nil, err
			}
			script = script.WithConfig(value)
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// executeFlow builds and runs a flow, prints the collected return values,
// and reports the outcome.
func executeFlow(ctx context.Context, cmd *cobra.Command, scripts []*engine.Script, opts flow.Options) error {
	f, err := flow.New(scripts, opts)
	if err != nil {
		return reportError(cmd, err)
	}

	report, err := f.Run(ctx)
	for _, res := range report.Results {
		if res.Value != "" {
			fmt.Println(res.Value)
		}
	}
	for _, proc := range report.Processes {
		if proc.Result != nil && proc.Result.Value != "" {
			fmt.Println(proc.Result.Value)
		}
	}
	if err != nil {
		return reportError(cmd, err)
	}

	if verbose {
		completed := len(report.Results) + len(report.Processes)
		fmt.Fprintf(os.Stdout, "%s %d task(s) completed\n", SuccessStyle.Render("✓"), completed)
	}
	return nil
}
