// SPDX-License-Identifier: MPL-2.0

package flowfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBytes(t *testing.T) {
	t.Parallel()

	content := `
mode:    "parallel"
workers: 4

tasks: [
	{
		script:      "./train.sh"
		description: "Train over the sweep grid"
		config:      "./grid.json"
	},
	{
		script:     "./report.sh"
		entrypoint: "summarize"
	},
]
`
	f, err := ParseBytes([]byte(content), "/flows/pipeline.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if f.Mode != ModeParallel {
		t.Errorf("Mode = %q, want %q", f.Mode, ModeParallel)
	}
	if f.Workers != 4 {
		t.Errorf("Workers = %d, want 4", f.Workers)
	}
	if f.FilePath != "/flows/pipeline.cue" {
		t.Errorf("FilePath = %q, want %q", f.FilePath, "/flows/pipeline.cue")
	}
	if len(f.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(f.Tasks))
	}
	if f.Tasks[0].Script != "./train.sh" || f.Tasks[0].Config != "./grid.json" {
		t.Errorf("Tasks[0] = %+v", f.Tasks[0])
	}
	if got, want := f.Tasks[0].Description.String(), "Train over the sweep grid"; got != want {
		t.Errorf("Tasks[0].Description = %q, want %q", got, want)
	}
	if f.Tasks[1].Entrypoint != "summarize" || f.Tasks[1].Config != "" {
		t.Errorf("Tasks[1] = %+v", f.Tasks[1])
	}
}

func TestParseBytesDefaults(t *testing.T) {
	t.Parallel()

	content := `
tasks: [
	{script: "./train.sh"},
]
`
	f, err := ParseBytes([]byte(content), "pipeline.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if f.Mode != "" {
		t.Errorf("Mode = %q, want empty", f.Mode)
	}
	if !f.Sequential() {
		t.Error("Sequential() = false, want true for unset mode")
	}
	if f.Workers != 0 {
		t.Errorf("Workers = %d, want 0", f.Workers)
	}
}

func TestParseBytesRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown field",
			content: `tasks: [{script: "./a.sh"}]` + "\n" + `worker: 4`,
		},
		{
			name:    "empty task list",
			content: `tasks: []`,
		},
		{
			name:    "missing script",
			content: `tasks: [{config: "./grid.json"}]`,
		},
		{
			name:    "empty script",
			content: `tasks: [{script: ""}]`,
		},
		{
			name:    "empty description",
			content: `tasks: [{script: "./a.sh", description: ""}]`,
		},
		{
			name:    "whitespace-only description",
			content: `tasks: [{script: "./a.sh", description: "   "}]`,
		},
		{
			name:    "invalid mode",
			content: `mode: "turbo"` + "\n" + `tasks: [{script: "./a.sh"}]`,
		},
		{
			name:    "negative workers",
			content: `workers: -1` + "\n" + `tasks: [{script: "./a.sh"}]`,
		},
		{
			name:    "unknown task field",
			content: `tasks: [{script: "./a.sh", retries: 3}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseBytes([]byte(tt.content), "pipeline.cue"); err == nil {
				t.Error("ParseBytes() expected an error")
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.cue")
	content := `
mode: "sequential"

tasks: [
	{script: "./train.sh"},
]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write flowfile: %v", err)
	}

	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.FilePath != path {
		t.Errorf("FilePath = %q, want %q", f.FilePath, path)
	}
	if f.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", f.Dir(), dir)
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Parse(filepath.Join(t.TempDir(), "absent.cue")); err == nil {
		t.Error("Parse() expected an error for a missing file")
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	f := &Flowfile{FilePath: filepath.Join("/flows", "pipeline.cue")}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "relative", path: "./train.sh", want: filepath.Join("/flows", "train.sh")},
		{name: "nested relative", path: "jobs/train.sh", want: filepath.Join("/flows", "jobs", "train.sh")},
		{name: "absolute", path: "/abs/train.sh", want: filepath.FromSlash("/abs/train.sh")},
		{name: "empty", path: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := f.ResolvePath(tt.path); got != tt.want {
				t.Errorf("ResolvePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSequential(t *testing.T) {
	t.Parallel()

	for mode, want := range map[string]bool{
		"":             true,
		ModeSequential: true,
		ModeParallel:   false,
	} {
		f := &Flowfile{Mode: mode}
		if got := f.Sequential(); got != want {
			t.Errorf("Sequential() with mode %q = %v, want %v", mode, got, want)
		}
	}
}
