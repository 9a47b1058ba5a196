// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"kogine/internal/engine"
	"kogine/internal/flow"
	"kogine/internal/issue"
	"kogine/internal/settings"
	"kogine/pkg/types"

	"github.com/spf13/cobra"
)

// reportError renders a failure in the CLI layer and converts it into a
// silent non-zero exit: the styled message always, the matching issue
// catalog entry when verbose output is on.
func reportError(cmd *cobra.Command, err error) error {
	issueID, styledMsg := classifyError(err, verbose)
	return reportIssueError(cmd, err, issueID, styledMsg)
}

// reportIssueError is reportError for call sites that already know the
// issue catalog ID (flowfiles, settings, the journal), whose errors carry
// no types the classifier could match on.
func reportIssueError(cmd *cobra.Command, err error, issueID issue.Id, styledMsg string) error {
	if styledMsg == "" {
		styledMsg = fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("✗ Error:"), formatErrorForDisplay(err, verbose))
	}
	fmt.Fprint(os.Stderr, styledMsg)

	if verbose {
		renderIssue(issueID)
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

// renderIssue prints the issue catalog entry's help section, if one exists.
func renderIssue(issueID issue.Id) {
	if issueID == 0 {
		return
	}

	catalogEntry := issue.Get(issueID)
	if catalogEntry == nil {
		return
	}

	rendered, renderErr := catalogEntry.Render(issueScheme())
	if renderErr != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", issueID, "error", renderErr)
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

// exitCodeFor maps a failure to the exit code the process should propagate:
// entrypoint and worker statuses pass through, anything else is a generic
// failure.
func exitCodeFor(err error) types.ExitCode {
	var invokeErr *engine.InvokeError
	if errors.As(err, &invokeErr) {
		return types.ExitCode(invokeErr.Status)
	}

	var workerErr *flow.WorkerError
	if errors.As(err, &workerErr) {
		return types.ExitCode(workerErr.Status)
	}

	return 1
}

// issueScheme maps the configured color scheme to a glamour style name.
func issueScheme() string {
	if toolSettings.UI.ColorScheme == settings.ColorSchemeLight {
		return "light"
	}
	return "dark"
}
