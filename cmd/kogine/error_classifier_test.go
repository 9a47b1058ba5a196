// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"testing"

	"kogine/internal/config"
	"kogine/internal/engine"
	"kogine/internal/flow"
	"kogine/internal/issue"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		verbose     bool
		wantIssueID issue.Id
		wantInStyle []string
	}{
		{
			name:        "missing script maps to script-not-found issue",
			err:         fmt.Errorf("script vanished: %w", engine.ErrScriptNotFound),
			wantIssueID: issue.ScriptNotFoundId,
			wantInStyle: []string{"Error:", "script vanished"},
		},
		{
			name:        "wrong extension maps to script-not-found issue",
			err:         fmt.Errorf("script %q: %w", "notes.txt", engine.ErrNotShellScript),
			wantIssueID: issue.ScriptNotFoundId,
			wantInStyle: []string{"notes.txt"},
		},
		{
			name:        "top-level failure maps to load issue",
			err:         &engine.LoadError{Script: "/work/broken.sh", Err: fmt.Errorf("exit status 3")},
			wantIssueID: issue.ScriptLoadFailedId,
			wantInStyle: []string{"load failed", "broken.sh"},
		},
		{
			name:        "missing entrypoint maps to entrypoint issue",
			err:         &engine.EntrypointNotFoundError{Script: "train.sh"},
			wantIssueID: issue.EntrypointNotFoundId,
			wantInStyle: []string{"no entrypoint found"},
		},
		{
			name:        "protected override maps to override issue",
			err:         &engine.ProtectedNameError{Name: "__file__"},
			wantIssueID: issue.OverrideRejectedId,
			wantInStyle: []string{"__file__", "read-only"},
		},
		{
			name:        "invalid override name maps to override issue",
			err:         &engine.InvalidNameError{Name: "2fast"},
			wantIssueID: issue.OverrideRejectedId,
			wantInStyle: []string{"2fast"},
		},
		{
			name:        "generator failure maps to stream issue",
			err:         &config.GeneratorError{Script: "gen.sh", Err: fmt.Errorf("exit status 3")},
			wantIssueID: issue.StreamStalledId,
			wantInStyle: []string{"config_gen", "gen.sh"},
		},
		{
			name:        "broken generator line maps to stream issue",
			err:         &config.StreamDecodeError{Source: "gen.sh", Line: 2, Err: fmt.Errorf("invalid character 'x'")},
			wantIssueID: issue.StreamStalledId,
			wantInStyle: []string{"line 2"},
		},
		{
			name:        "missing configuration source maps to config issue",
			err:         &config.NotFoundError{Path: "grid.json"},
			wantIssueID: issue.ConfigLoadFailedId,
			wantInStyle: []string{"grid.json"},
		},
		{
			name:        "unsupported configuration format maps to config issue",
			err:         &config.FormatError{Path: "grid.xml", Reason: "unsupported extension"},
			wantIssueID: issue.ConfigLoadFailedId,
			wantInStyle: []string{"unsupported extension"},
		},
		{
			name:        "worker spawn failure maps to spawn issue",
			err:         &flow.SpawnError{Script: "a.sh", Err: fmt.Errorf("executable not found")},
			wantIssueID: issue.WorkerSpawnFailedId,
			wantInStyle: []string{"failed to start worker"},
		},
		{
			name:        "unknown error has no catalog entry",
			err:         fmt.Errorf("unexpected boom"),
			wantIssueID: 0,
			wantInStyle: []string{"unexpected boom"},
		},
		{
			name: "verbose actionable error includes chain",
			err: issue.NewErrorContext().
				WithOperation("load script").
				Wrap(fmt.Errorf("read failed")).
				BuildError(),
			verbose:     true,
			wantIssueID: 0,
			wantInStyle: []string{"Error chain:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotIssueID, styled := classifyError(tt.err, tt.verbose)
			if gotIssueID != tt.wantIssueID {
				t.Fatalf("classifyError() issue ID = %v, want %v", gotIssueID, tt.wantIssueID)
			}

			for _, token := range tt.wantInStyle {
				if !strings.Contains(strings.ToLower(styled), strings.ToLower(token)) {
					t.Fatalf("styled message %q does not contain token %q", styled, token)
				}
			}
		})
	}
}
