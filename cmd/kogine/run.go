// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"kogine/internal/config"
	"kogine/internal/engine"
	"kogine/internal/flow"
	"kogine/pkg/types"

	"github.com/spf13/cobra"
)

// runCmd loads one script and invokes its designated entrypoint, once per
// configuration unit when a configuration source is supplied.
var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script, once per configuration unit",
	Long: `Run loads the script, executes its top level under the primary identity,
and invokes the entrypoint the script designates with its identity guard.
The entrypoint's captured output is the run's return value and is printed
to stdout.

With --config, the configuration source is resolved first: a single unit
injects its values into the script's top level before the run; a stream
source (a script defining config_gen) fans out into one full run per
unit, executed in order.

With --subprocess, each unit runs in an isolated child process instead,
spread across --workers parallel workers.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "configuration source (.sh, .cue, .json, .toml, .yaml)")
	runCmd.Flags().StringP("entrypoint", "e", "", "function to invoke instead of the script's designation")
	runCmd.Flags().Bool("library", false, "load the script without invoking its entrypoint")
	runCmd.Flags().Bool("subprocess", false, "isolate each configuration unit in a child process")
	runCmd.Flags().Int("workers", 0, "parallel workers for --subprocess (0 means all CPUs)")
}

// runRun prepares the script unit and drives it through a single-script flow,
// which handles both the discrete and the streaming configuration shapes.
func runRun(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	entrypoint, _ := cmd.Flags().GetString("entrypoint")
	library, _ := cmd.Flags().GetBool("library")
	subprocess, _ := cmd.Flags().GetBool("subprocess")
	workers, _ := cmd.Flags().GetInt("workers")

	ctx := cmd.Context()

	script, err := engine.NewScript(args[0])
	if err != nil {
		return reportError(cmd, err)
	}
	script.Entrypoint = entrypoint
	script.Library = library

	if configFile != "" {
		value, err := config.Load(ctx, configFile, config.LoadOptions{EngineTag: engineTag()})
		if err != nil {
			return reportError(cmd, err)
		}
		script = script.WithConfig(value)
	}

	if workers == 0 {
		workers = toolSettings.Workers
	}

	jnl := openJournal()
	defer jnl.Close()

	f, err := flow.New([]*engine.Script{script}, flow.Options{
		Parallel:  subprocess,
		Workers:   workers,
		Journal:   jnl,
		EngineTag: engineTag(),
	})
	if err != nil {
		return reportError(cmd, err)
	}

	report, err := f.Run(ctx)
	for _, res := range report.Results {
		if res.Value != "" {
			fmt.Println(res.Value)
		}
	}
	if err != nil {
		// Entrypoint exit statuses pass through like a shell's would; the
		// script has already written its own diagnostics.
		var invokeErr *engine.InvokeError
		if errors.As(err, &invokeErr) {
			if verbose {
				fmt.Fprintf(os.Stdout, "%s Script exited with code %d\n", WarningStyle.Render("!"), invokeErr.Status)
			}
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return &ExitError{Code: types.ExitCode(invokeErr.Status), Err: err}
		}
		return reportError(cmd, err)
	}

	return nil
}
