// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"encoding/json"
	"fmt"
	"os"

	"kogine/internal/config"

	"mvdan.cc/sh/v3/syntax"
)

// writeTempConfig serializes cfg to a temporary shell configuration source:
// a single CONFIG assignment holding the unit as JSON, quoted for the shell.
// A child process loads the file through the ordinary loader path and
// reconstructs an equivalent unit. The round trip is lossy for any value
// without a JSON representation.
//
// The returned cleanup removes the file; callers run it once the child has
// exited.
func writeTempConfig(cfg *config.Config) (path string, cleanup func(), err error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("serialize configuration unit: %w", err)
	}
	quoted, err := syntax.Quote(string(data), syntax.LangBash)
	if err != nil {
		return "", nil, fmt.Errorf("quote configuration unit: %w", err)
	}

	tmp, err := os.CreateTemp("", "kogine_config_*.sh")
	if err != nil {
		return "", nil, fmt.Errorf("create temporary configuration source: %w", err)
	}
	if _, err := tmp.WriteString(config.StaticVar + "=" + quoted + "\n"); err != nil {
		_ = tmp.Close()           // Best-effort close on error path
		_ = os.Remove(tmp.Name()) // Best-effort cleanup on error path
		return "", nil, fmt.Errorf("write temporary configuration source: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) // Best-effort cleanup on error path
		return "", nil, fmt.Errorf("close temporary configuration source: %w", err)
	}

	name := tmp.Name()
	return name, func() { _ = os.Remove(name) }, nil
}
