// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"kogine/internal/config"
	"kogine/internal/engine"
	"kogine/internal/flow"
	"kogine/internal/issue"
)

// classifyError maps load/execution failures to issue catalog IDs and
// returns a styled message for CLI rendering. It preserves actionable error
// details. An ID of zero means the catalog has no entry for this failure.
func classifyError(err error, verboseMode bool) (issueID issue.Id, styledMsg string) {
	var (
		loadErr    *engine.LoadError
		formatErr  *config.FormatError
		fieldErr   *config.FieldTypeError
		unknownErr *config.UnknownFieldError
		genErr     *config.GeneratorError
		decodeErr  *config.StreamDecodeError
		spawnErr   *flow.SpawnError
	)

	switch {
	case errors.Is(err, engine.ErrScriptNotFound), errors.Is(err, engine.ErrNotShellScript):
		issueID = issue.ScriptNotFoundId
	case errors.As(err, &loadErr):
		issueID = issue.ScriptLoadFailedId
	case errors.Is(err, engine.ErrEntrypointNotFound):
		issueID = issue.EntrypointNotFoundId
	case errors.Is(err, engine.ErrProtectedName), errors.Is(err, engine.ErrInvalidOverrideName):
		issueID = issue.OverrideRejectedId
	case errors.As(err, &genErr), errors.As(err, &decodeErr):
		issueID = issue.StreamStalledId
	case errors.Is(err, config.ErrConfigNotFound),
		errors.As(err, &formatErr),
		errors.As(err, &fieldErr),
		errors.As(err, &unknownErr):
		issueID = issue.ConfigLoadFailedId
	case errors.As(err, &spawnErr):
		issueID = issue.WorkerSpawnFailedId
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("✗ Error:"), formatErrorForDisplay(err, verboseMode))
}
