// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for kogine.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"kogine/internal/issue"
	"kogine/internal/settings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// Verbose enables verbose output
	verbose bool
	// settingsFile allows specifying a custom settings file
	settingsFile string

	// toolSettings holds the loaded tool settings; starts as the built-in
	// defaults and is replaced by initRootSettings once flags are parsed.
	toolSettings = settings.Default()
	// settingsPath is the resolved settings file, empty when defaults apply.
	settingsPath string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "kogine",
		Short: "A configurable script execution engine",
		Long: TitleStyle.Render("kogine") + SubtitleStyle.Render(" - A configurable script execution engine") + `

kogine loads shell scripts as executable units, injects configuration
values into their top level, and invokes the entrypoint each script
designates with its identity guard. Runs can be chained sequentially
or fanned out to parallel workers, one run per configuration unit.

Configuration sources are plain files (CUE, JSON, TOML, YAML) or shell
scripts that assign CONFIG or define a config_gen streaming function.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Write a script with an entrypoint function and an identity guard
  2. Describe its runs in a configuration source
  3. Run it with: kogine run ./script.sh --config ./sweep.sh

` + SubtitleStyle.Render("Examples:") + `
  kogine run ./train.sh                  Load and run a script
  kogine run ./train.sh --config c.json  Run with injected configuration
  kogine flow parallel a.sh b.sh         Fan scripts out to workers
  kogine flow run ./kogineflow.cue       Run a declared flow
  kogine config show ./sweep.sh          Inspect a configuration source
  kogine history                         Show recent runs`,
	}
)

func init() {
	cobra.OnInitialize(initRootSettings)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (default is $HOME/.config/kogine/settings.cue)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(flowCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(historyCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// engineTag returns the engine identity scripts observe in __engine__.
func engineTag() string {
	if Version == "dev" {
		return "kogine/dev"
	}
	return "kogine/" + Version
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// initRootSettings reads in the settings file and ENV variables if set.
func initRootSettings() {
	opts := settings.LoadOptions{}
	if settingsFile != "" {
		opts.SettingsFilePath = settingsFile
	}

	cfg, path, err := settings.Load(context.Background(), opts)
	if err != nil {
		// Always surface settings problems; the built-in defaults still apply.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		if verbose {
			renderIssue(issue.SettingsLoadFailedId)
		}
		return
	}
	toolSettings = cfg
	settingsPath = path

	// Apply verbose from settings if not set via flag
	if !verbose {
		verbose = cfg.UI.Verbose
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
