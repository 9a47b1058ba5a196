// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kogine/internal/config"
	"kogine/internal/journal"
	"kogine/internal/scriptenv"
	"kogine/internal/testutil"

	"mvdan.cc/sh/v3/interp"
)

// newTestScript writes body into a fresh temp dir and wraps it as a unit.
func newTestScript(t *testing.T, body string) *Script {
	t.Helper()
	s, err := NewScript(testutil.TempScript(t, "unit.sh", body))
	if err != nil {
		t.Fatalf("NewScript() error = %v", err)
	}
	return s
}

// hermeticOpts builds options that keep the execution away from the process's
// stdio, environment, and default registry.
func hermeticOpts(stdout, stderr *bytes.Buffer) Options {
	return Options{
		Stdout:   stdout,
		Stderr:   stderr,
		Environ:  []string{},
		Registry: NewRegistry(),
	}
}

func TestExecuteLoadOnly(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, "echo \"top level ran\"\n")
	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))

	res, err := x.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res != nil {
		t.Errorf("Execute() = %+v, want nil result for load-only run", res)
	}
	if got := x.State(); got != StateLoaded {
		t.Errorf("State() = %q, want %q", got, StateLoaded)
	}
	if got := stdout.String(); got != "top level ran\n" {
		t.Errorf("stdout = %q, want %q", got, "top level ran\n")
	}
}

func TestExecuteMainFallback(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  echo "ran as $__name__"
}
`)
	s.Config = config.New()
	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))

	res, err := x.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Value != "ran as "+scriptenv.MainName {
		t.Errorf("Value = %q, want %q", res.Value, "ran as "+scriptenv.MainName)
	}
	if res.Entrypoint != MainFunc {
		t.Errorf("Entrypoint = %q, want %q", res.Entrypoint, MainFunc)
	}
	if res.Script != s.Path {
		t.Errorf("Script = %q, want %q", res.Script, s.Path)
	}
	if res.RunID == "" {
		t.Error("expected a generated run ID")
	}
	if got := x.State(); got != StateInvoked {
		t.Errorf("State() = %q, want %q", got, StateInvoked)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want captured output kept out of it", stdout.String())
	}
}

func TestExecuteGuardDoubleExecution(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `greet() {
  echo "hello $1"
}

if [ "$__name__" = "__main__" ]; then
  greet "load"
fi
`)
	cfg := config.New()
	cfg.Args = []any{"invoke"}
	s.Config = cfg

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// The guard fired during the load pass; its output goes to stdout. The
	// second invocation of the entrypoint is what produces the value.
	if got := stdout.String(); got != "hello load\n" {
		t.Errorf("stdout = %q, want %q", got, "hello load\n")
	}
	if res.Value != "hello invoke" {
		t.Errorf("Value = %q, want %q", res.Value, "hello invoke")
	}
	if res.Entrypoint != "greet" {
		t.Errorf("Entrypoint = %q, want %q", res.Entrypoint, "greet")
	}
}

func TestExecuteExplicitEntrypoint(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  echo "from main"
}

evaluate() {
  echo "from evaluate"
}
`)
	s.Config = config.New()
	s.Entrypoint = "evaluate"

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Value != "from evaluate" {
		t.Errorf("Value = %q, want %q", res.Value, "from evaluate")
	}
}

func TestExecuteExplicitEntrypointMissing(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  echo "from main"
}
`)
	s.Config = config.New()
	s.Entrypoint = "absent"

	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))
	_, err := x.Execute(context.Background())
	if !errors.Is(err, ErrEntrypointNotFound) {
		t.Fatalf("Execute() error = %v, want ErrEntrypointNotFound", err)
	}
	if got := x.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
}

func TestExecuteNoEntrypoint(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `helper() {
  echo "not an entrypoint"
}
`)
	s.Config = config.New()

	var stdout, stderr bytes.Buffer
	_, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if !errors.Is(err, ErrEntrypointNotFound) {
		t.Fatalf("Execute() error = %v, want ErrEntrypointNotFound", err)
	}
}

func TestExecuteOverridesVisibleToEntrypoint(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `epochs=1

report() {
  echo "epochs=$epochs"
}

main() {
  report
}
`)
	cfg := config.New()
	cfg.Overrides["epochs"] = 5
	s.Config = cfg

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Value != "epochs=5" {
		t.Errorf("Value = %q, want %q", res.Value, "epochs=5")
	}
}

func TestExecuteProtectedOverride(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  echo "never reached"
}
`)
	cfg := config.New()
	cfg.Overrides[scriptenv.NameVar] = "fake"
	s.Config = cfg

	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))
	_, err := x.Execute(context.Background())
	if !errors.Is(err, ErrProtectedName) {
		t.Fatalf("Execute() error = %v, want ErrProtectedName", err)
	}
	if got := x.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
}

func TestExecuteKwargsBoundGracefully(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `train() {
  echo "epochs=$epochs"
}
`)
	cfg := config.New()
	cfg.Kwargs["epochs"] = 3
	cfg.Kwargs["batch"] = 99 // not read by the function; dropped silently
	s.Config = cfg
	s.Entrypoint = "train"

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Value != "epochs=3" {
		t.Errorf("Value = %q, want %q", res.Value, "epochs=3")
	}
}

func TestExecuteOpenFunctionReceivesEverything(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `dump() {
  echo "all:$*"
  echo "a=$a"
}
`)
	cfg := config.New()
	cfg.Kwargs["a"] = 1
	cfg.Kwargs["z"] = 9
	cfg.Args = []any{"x", "y"}
	s.Config = cfg
	s.Entrypoint = "dump"

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if want := "all:x y\na=1"; res.Value != want {
		t.Errorf("Value = %q, want %q", res.Value, want)
	}
}

func TestExecuteValueTrimsOneTrailingNewline(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  printf 'x\n\n'
}
`)
	s.Config = config.New()

	var stdout, stderr bytes.Buffer
	res, err := New(s, hermeticOpts(&stdout, &stderr)).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Value != "x\n" {
		t.Errorf("Value = %q, want %q", res.Value, "x\n")
	}
}

func TestExecuteInvokeFailure(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `flaky() {
  echo "before failure"
  return 3
}
`)
	s.Config = config.New()
	s.Entrypoint = "flaky"

	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))
	res, err := x.Execute(context.Background())
	if res != nil {
		t.Errorf("Execute() result = %+v, want nil on failure", res)
	}

	var invErr *InvokeError
	if !errors.As(err, &invErr) {
		t.Fatalf("error %T does not wrap InvokeError", err)
	}
	if invErr.Status != 3 {
		t.Errorf("Status = %d, want 3", invErr.Status)
	}
	if invErr.Entrypoint != "flaky" {
		t.Errorf("Entrypoint = %q, want %q", invErr.Entrypoint, "flaky")
	}
	if got := x.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
	// Output captured from the failed invocation is discarded.
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestExecuteLoadFailure(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, "exit 5\n")

	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))
	_, err := x.Execute(context.Background())

	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("error %T does not wrap LoadError", err)
	}
	var es interp.ExitStatus
	if !errors.As(err, &es) || es != 5 {
		t.Errorf("exit status = %v, want 5", err)
	}
	if got := x.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
}

func TestExecuteTwiceFails(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, "echo once\n")
	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))

	if _, err := x.Execute(context.Background()); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	_, err := x.Execute(context.Background())
	if !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("second Execute() error = %v, want ErrAlreadyExecuted", err)
	}

	var serr *StateError
	if !errors.As(err, &serr) {
		t.Fatalf("error %T does not wrap StateError", err)
	}
	if serr.State != StateLoaded {
		t.Errorf("State = %q, want %q", serr.State, StateLoaded)
	}
}

func TestExecuteRejectsUnexpandedStream(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, "echo hi\n")
	s.Config = config.FromSlice(nil)

	var stdout, stderr bytes.Buffer
	x := New(s, hermeticOpts(&stdout, &stderr))
	_, err := x.Execute(context.Background())
	if !errors.Is(err, ErrUnexpandedStream) {
		t.Fatalf("Execute() error = %v, want ErrUnexpandedStream", err)
	}
	if got := x.State(); got != StateCreated {
		t.Errorf("State() = %q, want %q", got, StateCreated)
	}
}

func TestExecuteLibraryMode(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `util() {
  echo "util ready"
}

if [ "$__name__" = "__main__" ]; then
  echo "guard fired"
fi
`)
	s.Library = true

	var stdout, stderr bytes.Buffer
	opts := hermeticOpts(&stdout, &stderr)
	res, err := New(s, opts).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res != nil {
		t.Errorf("Execute() = %+v, want nil result", res)
	}
	// Library units run under their own name, so the identity guard must
	// not fire.
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	if got, ok := opts.Registry.Lookup("unit"); !ok || got != s {
		t.Error("expected library unit to remain registered after the run")
	}
}

func TestExecuteMainSlotRestored(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, "echo hi\n")
	var stdout, stderr bytes.Buffer
	opts := hermeticOpts(&stdout, &stderr)

	if _, err := New(s, opts).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, ok := opts.Registry.Lookup(scriptenv.MainName); ok {
		t.Error("expected the main slot to be released after the run")
	}
	if opts.Registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", opts.Registry.Len())
	}
}

func TestExecuteAttributes(t *testing.T) {
	t.Parallel()

	s := newTestScript(t, `main() {
  echo "$__engine__|$__run__|$__worker__"
  echo "$__file__"
  echo "$__dir__"
}
`)
	s.Config = config.New()

	var stdout, stderr bytes.Buffer
	opts := hermeticOpts(&stdout, &stderr)
	opts.RunID = "r-1"
	opts.WorkerID = "3"
	opts.EngineTag = "kogine/test"

	res, err := New(s, opts).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := strings.Join([]string{"kogine/test|r-1|3", s.Path, s.Dir}, "\n")
	if res.Value != want {
		t.Errorf("Value = %q, want %q", res.Value, want)
	}
	if res.RunID != "r-1" || res.WorkerID != "3" {
		t.Errorf("RunID/WorkerID = %q/%q, want r-1/3", res.RunID, res.WorkerID)
	}
}

func TestExecuteRecordsJournal(t *testing.T) {
	t.Parallel()

	j, err := journal.Open(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	defer testutil.DeferClose(t, j)()

	clock := testutil.NewFakeClock(time.Time{})

	ok := newTestScript(t, `main() {
  echo done
}
`)
	ok.Config = config.New()
	var stdout, stderr bytes.Buffer
	opts := hermeticOpts(&stdout, &stderr)
	opts.Journal = j
	opts.RunID = "run-ok"
	opts.WorkerID = "1"
	opts.Clock = clock
	if _, err := New(ok, opts).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	bad := newTestScript(t, `main() {
  return 3
}
`)
	bad.Config = config.New()
	badOpts := hermeticOpts(&stdout, &stderr)
	badOpts.Journal = j
	badOpts.RunID = "run-bad"
	badOpts.Clock = clock
	if _, err := New(bad, badOpts).Execute(context.Background()); err == nil {
		t.Fatal("Execute() expected an invocation failure")
	}

	entries, err := j.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	// Newest first.
	failed, completed := entries[0], entries[1]
	if failed.RunID != "run-bad" || failed.Status != journal.StatusFailed {
		t.Errorf("failed entry = %q/%q, want run-bad/%q", failed.RunID, failed.Status, journal.StatusFailed)
	}
	if failed.ExitCode != 3 || failed.Error == "" {
		t.Errorf("failed entry exit/error = %d/%q, want 3/non-empty", failed.ExitCode, failed.Error)
	}
	if completed.RunID != "run-ok" || completed.Status != journal.StatusCompleted {
		t.Errorf("completed entry = %q/%q, want run-ok/%q", completed.RunID, completed.Status, journal.StatusCompleted)
	}
	if completed.Entrypoint != MainFunc || completed.WorkerID != "1" {
		t.Errorf("completed entry = %q/%q, want %q/1", completed.Entrypoint, completed.WorkerID, MainFunc)
	}
	if !completed.StartedAt.Equal(clock.Now()) {
		t.Errorf("StartedAt = %v, want %v", completed.StartedAt, clock.Now())
	}
}
