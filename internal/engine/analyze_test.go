// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"strings"
	"testing"

	"mvdan.cc/sh/v3/syntax"
)

func parseScript(t *testing.T, src string) *syntax.File {
	t.Helper()
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "test.sh")
	if err != nil {
		t.Fatalf("failed to parse script: %v", err)
	}
	return file
}

func TestAnalyzeGuardForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "single bracket with =",
			src: `run() { echo hi; }
if [ "$__name__" = "__main__" ]; then
	run
fi`,
			want: "run",
		},
		{
			name: "single bracket with ==",
			src: `run() { echo hi; }
if [ "$__name__" == "__main__" ]; then
	run
fi`,
			want: "run",
		},
		{
			name: "double bracket",
			src: `run() { echo hi; }
if [[ "$__name__" == "__main__" ]]; then
	run
fi`,
			want: "run",
		},
		{
			name: "double bracket unquoted param",
			src: `run() { echo hi; }
if [[ $__name__ == "__main__" ]]; then
	run
fi`,
			want: "run",
		},
		{
			name: "test builtin",
			src: `run() { echo hi; }
if test "$__name__" = "__main__"; then
	run
fi`,
			want: "run",
		},
		{
			name: "single quoted literal",
			src: `run() { echo hi; }
if [ "$__name__" = '__main__' ]; then
	run
fi`,
			want: "run",
		},
		{
			name: "helper calls are skipped",
			src: `run() { echo hi; }
if [ "$__name__" = "__main__" ]; then
	echo "starting"
	date
	run "$@"
fi`,
			want: "run",
		},
		{
			name: "nested call inside guard body",
			src: `run() { echo hi; }
if [ "$__name__" = "__main__" ]; then
	if [ -n "$DEBUG" ]; then
		run
	fi
fi`,
			want: "run",
		},
		{
			name: "marker on the left does not count",
			src: `run() { echo hi; }
if [ "__main__" = "$__name__" ]; then
	run
fi`,
			want: "",
		},
		{
			name: "negated guard does not count",
			src: `run() { echo hi; }
if ! [ "$__name__" = "__main__" ]; then
	run
fi`,
			want: "",
		},
		{
			name: "wrong variable does not count",
			src: `run() { echo hi; }
if [ "$name" = "__main__" ]; then
	run
fi`,
			want: "",
		},
		{
			name: "inequality does not count",
			src: `run() { echo hi; }
if [ "$__name__" != "__main__" ]; then
	run
fi`,
			want: "",
		},
		{
			name: "undeclared function is not an entrypoint",
			src: `if [ "$__name__" = "__main__" ]; then
	missing
fi`,
			want: "",
		},
		{
			name: "guard call with prefix assignment is skipped",
			src: `run() { echo hi; }
other() { echo other; }
if [ "$__name__" = "__main__" ]; then
	DEBUG=1 run
	other
fi`,
			want: "other",
		},
		{
			name: "first matching guard wins",
			src: `first() { echo 1; }
second() { echo 2; }
if [ "$__name__" = "__main__" ]; then
	first
fi
if [ "$__name__" = "__main__" ]; then
	second
fi`,
			want: "first",
		},
		{
			name: "guard without function call falls through to next guard",
			src: `second() { echo 2; }
if [ "$__name__" = "__main__" ]; then
	echo "just logging"
fi
if [ "$__name__" = "__main__" ]; then
	second
fi`,
			want: "second",
		},
		{
			name: "no guard",
			src: `main() { echo hi; }
main`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			an := Analyze(parseScript(t, tt.src))
			if an.GuardEntrypoint != tt.want {
				t.Errorf("GuardEntrypoint = %q, want %q", an.GuardEntrypoint, tt.want)
			}
		})
	}
}

func TestAnalyzeCollectsFuncs(t *testing.T) {
	t.Parallel()

	src := `setup() { echo setup; }
function teardown {
	echo teardown
}
run_all() { setup; teardown; }`

	an := Analyze(parseScript(t, src))
	for _, name := range []string{"setup", "teardown", "run_all"} {
		if !an.Funcs[name] {
			t.Errorf("expected function %q to be collected", name)
		}
	}
	if len(an.Funcs) != 3 {
		t.Errorf("collected %d functions, want 3", len(an.Funcs))
	}
}

func TestAnalyzeBinding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		src            string
		fn             string
		wantPositional bool
		wantOpen       bool
		wantReads      []string
	}{
		{
			name:           "numbered positional",
			src:            `f() { echo "$1 and $2"; }`,
			fn:             "f",
			wantPositional: true,
		},
		{
			name:           "braced positional",
			src:            `f() { echo "${10}"; }`,
			fn:             "f",
			wantPositional: true,
		},
		{
			name:           "at is open",
			src:            `f() { echo "$@"; }`,
			fn:             "f",
			wantPositional: true,
			wantOpen:       true,
		},
		{
			name:           "star is open",
			src:            `f() { echo "$*"; }`,
			fn:             "f",
			wantPositional: true,
			wantOpen:       true,
		},
		{
			name:           "count is positional but not open",
			src:            `f() { echo "$#"; }`,
			fn:             "f",
			wantPositional: true,
		},
		{
			name:      "named reads",
			src:       `f() { echo "$alpha ${beta}"; }`,
			fn:        "f",
			wantReads: []string{"alpha", "beta"},
		},
		{
			name:      "default expansion still reads",
			src:       `f() { echo "${rate:-0.5}"; }`,
			fn:        "f",
			wantReads: []string{"rate"},
		},
		{
			name: "zero is not positional",
			src:  `f() { echo "$0"; }`,
			fn:   "f",
		},
		{
			name: "no parameters",
			src:  `f() { echo fixed; }`,
			fn:   "f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file := parseScript(t, tt.src)
			var body *syntax.Stmt
			for _, stmt := range file.Stmts {
				if decl, ok := stmt.Cmd.(*syntax.FuncDecl); ok && decl.Name.Value == tt.fn {
					body = decl.Body
				}
			}
			if body == nil {
				t.Fatalf("function %q not found", tt.fn)
			}

			b := AnalyzeBinding(body)
			if b.Positional != tt.wantPositional {
				t.Errorf("Positional = %v, want %v", b.Positional, tt.wantPositional)
			}
			if b.Open != tt.wantOpen {
				t.Errorf("Open = %v, want %v", b.Open, tt.wantOpen)
			}
			for _, name := range tt.wantReads {
				if !b.Reads[name] {
					t.Errorf("expected %q in Reads, got %v", name, b.Reads)
				}
			}
		})
	}
}
