// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kogine/internal/issue"
	"kogine/internal/journal"
	"kogine/internal/settings"

	"github.com/spf13/cobra"
)

// historyCmd lists recent journal entries.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the journal",
	Long: `History lists recent script runs recorded in the journal, newest first.

Journaling is off by default; enable it in the settings file:

  journal: {
  	enabled: true
  }`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 10, "entries to show (0 means all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := cmd.Context()

	path, err := journalPath()
	if err != nil {
		return reportIssueError(cmd, err, issue.JournalUnavailableId, "")
	}

	// Stat first so a read-only query never creates an empty journal.
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			printNoRuns()
			return nil
		}
		return reportIssueError(cmd, statErr, issue.JournalUnavailableId, "")
	}

	jnl, err := journal.Open(path)
	if err != nil {
		return reportIssueError(cmd, err, issue.JournalUnavailableId, "")
	}
	defer jnl.Close()

	entries, err := jnl.Recent(ctx, limit)
	if err != nil {
		return reportIssueError(cmd, err, issue.JournalUnavailableId, "")
	}

	if len(entries) == 0 {
		printNoRuns()
		return nil
	}

	for _, e := range entries {
		fmt.Println(renderHistoryLine(e))
		if verbose {
			fmt.Printf("    run %s  worker %s  %s\n", e.RunID, e.WorkerID, e.Script)
			if e.Error != "" {
				fmt.Printf("    %s\n", ErrorStyle.Render(e.Error))
			}
		}
	}

	return nil
}

func printNoRuns() {
	fmt.Println(SubtitleStyle.Render("no recorded runs"))
	if !toolSettings.Journal.Enabled {
		fmt.Println(SubtitleStyle.Render("journaling is disabled; enable it in the settings file"))
	}
}

// renderHistoryLine formats one journal entry as a single styled line.
func renderHistoryLine(e journal.Entry) string {
	icon := SuccessStyle.Render("✓")
	detail := string(e.Status)
	if e.Status == journal.StatusFailed {
		icon = ErrorStyle.Render("✗")
		detail = fmt.Sprintf("exit %d", e.ExitCode)
	}

	entrypoint := e.Entrypoint
	if entrypoint == "" {
		entrypoint = "-"
	}

	return fmt.Sprintf("%s %s  %s %s  %s  %s",
		icon,
		e.StartedAt.Local().Format("2006-01-02 15:04:05"),
		ValueStyle.Render(filepath.Base(e.Script)),
		entrypoint,
		detail,
		SubtitleStyle.Render(e.Duration.Round(time.Millisecond).String()),
	)
}

// journalPath resolves the journal location from settings.
func journalPath() (string, error) {
	if toolSettings.Journal.Path != "" {
		return toolSettings.Journal.Path, nil
	}
	return settings.DefaultJournalPath()
}

// openJournal opens the configured journal for recording. It returns nil,
// which discards entries, when journaling is disabled or the journal cannot
// be opened; open failures warn rather than block the run.
func openJournal() *journal.Journal {
	if !toolSettings.Journal.Enabled {
		return nil
	}

	path, err := journalPath()
	if err == nil {
		var jnl *journal.Journal
		jnl, err = journal.Open(path)
		if err == nil {
			return jnl
		}
	}

	fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	if verbose {
		renderIssue(issue.JournalUnavailableId)
	}
	return nil
}
