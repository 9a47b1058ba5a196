// SPDX-License-Identifier: MPL-2.0

package flowfile

import (
	"fmt"
	"path/filepath"

	"kogine/pkg/types"
)

// FlowfileName is the base name for flowfile definitions.
const FlowfileName = "flowfile"

// Orchestration modes a flowfile may select.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Flowfile represents a flow definition from a .cue file.
type Flowfile struct {
	// Mode selects the orchestrator. Empty means sequential.
	Mode string `json:"mode,omitempty"`
	// Workers bounds parallel execution. Zero means one worker per CPU.
	// Ignored for sequential flows.
	Workers int `json:"workers,omitempty"`
	// Tasks are the script runs, in declaration order.
	Tasks []Task `json:"tasks"`

	// FilePath stores the path where this flowfile was loaded from (not in CUE)
	FilePath string `json:"-"`
}

// Task is one script run within a flow.
type Task struct {
	// Script is the path to the .sh unit. Relative paths resolve against
	// the flowfile location; forward slashes should be used for
	// cross-platform compatibility.
	Script types.FilesystemPath `json:"script"`
	// Description optionally documents what the task does.
	Description types.DescriptionText `json:"description,omitempty"`
	// Config optionally names a configuration source for the run.
	// Resolved like Script.
	Config string `json:"config,omitempty"`
	// Entrypoint optionally names the function to invoke, bypassing
	// discovery.
	Entrypoint string `json:"entrypoint,omitempty"`
}

// Dir returns the directory containing the flowfile, the base for resolving
// relative task paths.
func (f *Flowfile) Dir() string {
	return filepath.Dir(f.FilePath)
}

// ResolvePath converts a task path from CUE format (forward slashes) to the
// native format and resolves it against the flowfile directory.
func (f *Flowfile) ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	native := filepath.FromSlash(path)
	if filepath.IsAbs(native) {
		return native
	}
	return filepath.Join(f.Dir(), native)
}

// Sequential reports whether the flow runs its tasks in order in-process.
func (f *Flowfile) Sequential() bool {
	return f.Mode == "" || f.Mode == ModeSequential
}

// validate applies the checks the CUE schema cannot express on its own and
// guards against hand-constructed values.
func (f *Flowfile) validate() error {
	switch f.Mode {
	case "", ModeSequential, ModeParallel:
	default:
		return fmt.Errorf("invalid flow mode %q (expected: %s, %s)", f.Mode, ModeSequential, ModeParallel)
	}
	if f.Workers < 0 {
		return fmt.Errorf("invalid worker count %d: must be >= 0", f.Workers)
	}
	if len(f.Tasks) == 0 {
		return fmt.Errorf("flowfile declares no tasks")
	}
	for i, task := range f.Tasks {
		if ok, errs := task.Script.IsValid(); !ok {
			return fmt.Errorf("task %d: %w", i, errs[0])
		}
		if ok, errs := task.Description.IsValid(); !ok {
			return fmt.Errorf("task %d: %w", i, errs[0])
		}
	}
	return nil
}
