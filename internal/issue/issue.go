// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ScriptNotFoundId Id = iota + 1
	ScriptLoadFailedId
	EntrypointNotFoundId
	OverrideRejectedId
	ConfigLoadFailedId
	StreamStalledId
	SettingsLoadFailedId
	FlowfileNotFoundId
	FlowfileParseErrorId
	WorkerSpawnFailedId
	JournalUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	scriptNotFoundIssue = &Issue{
		id: ScriptNotFoundId,
		mdMsg: `
# Script not found!

The script you asked for does not exist at the given path.

## Things you can try:
- Check the path for typos:
~~~
$ kogine run ./train.sh
~~~

- Make sure the file ends in .sh; other files are not loadable as script units
- Use an absolute path if you are not running from the script's directory`,
	}

	scriptLoadFailedIssue = &Issue{
		id: ScriptLoadFailedId,
		mdMsg: `
# Script failed to load!

The script's top level did not run to completion, so no entrypoint was invoked.

## Common causes:
- Shell syntax errors
- A top-level command exited nonzero
- An explicit ` + "`exit`" + ` at the top level

## Things you can try:
- Run with verbose mode for the full error chain:
~~~
$ kogine --verbose run ./train.sh
~~~

- Test the script directly in a shell to find the failing line
- Keep side effects under an identity guard so loading stays cheap:
~~~sh
if [ "$__name__" = "__main__" ]; then
  main
fi
~~~`,
	}

	entrypointNotFoundIssue = &Issue{
		id: EntrypointNotFoundId,
		mdMsg: `
# No entrypoint found!

The script loaded, but there is nothing to invoke.

## How entrypoints are resolved (in order):
1. The function named with --entrypoint, if given
2. The first function called inside an identity guard
3. A function named ` + "`main`" + `

## Things you can try:
- Add an identity guard that calls your function:
~~~sh
train() {
  echo "training..."
}

if [ "$__name__" = "__main__" ]; then
  train
fi
~~~

- Or define a ` + "`main`" + ` function
- Or name the function explicitly:
~~~
$ kogine run ./train.sh --entrypoint train
~~~`,
	}

	overrideRejectedIssue = &Issue{
		id: OverrideRejectedId,
		mdMsg: `
# Override rejected!

One of the configured overrides cannot be injected, so none of them were.

## Rules for override names:
- Must be a valid shell variable name (letters, digits, underscore; no leading digit)
- Must not target a script attribute: ` + "`__name__`, `__file__`, `__dir__`, `__engine__`, `__run__`, `__worker__`" + `

## Things you can try:
- Rename the offending key in your configuration source
- Remember that overrides replace top-level variables; use kwargs for per-call values`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration source!

The configuration source could not be turned into config units.

## Supported sources:
- ` + "`.sh`" + ` scripts whose entrypoint prints config JSON
- Static data files: ` + "`.json`, `.cue`, `.yaml`, `.yml`, `.toml`" + `

## Things you can try:
- Validate the source before running:
~~~
$ kogine config validate ./grid.json
~~~

- Check that the top-level value is an object (one unit) or an array of objects (a stream)
- For script sources, make sure the entrypoint prints one JSON object per line`,
	}

	streamStalledIssue = &Issue{
		id: StreamStalledId,
		mdMsg: `
# Config stream failed mid-sequence!

A unit pulled from the configuration stream was invalid. Units before it may
already have executed.

## Things you can try:
- Inspect the stream's units:
~~~
$ kogine config show ./grid.sh --limit 10
~~~

- Fix the generator so every emitted object matches the unit layout
  (` + "`overrides`, `args`, `kwargs`, `metadata`" + `)
- Re-run; sequential flows abort at the first failure, so fixing the unit
  resumes from a clean state`,
	}

	settingsLoadFailedIssue = &Issue{
		id: SettingsLoadFailedId,
		mdMsg: `
# Failed to load settings!

Could not load the kogine settings file.

## Settings file locations:
- Linux: ~/.config/kogine/settings.cue
- macOS: ~/Library/Application Support/kogine/settings.cue
- Windows: %APPDATA%\kogine\settings.cue

## Things you can try:
- Check the settings syntax
- Remove the settings file to use defaults:
~~~
$ rm ~/.config/kogine/settings.cue
~~~

## Example settings:
~~~cue
workers: 4
mode:    "subprocess"

journal: {
  enabled: true
}

ui: {
  color_scheme: "auto"
  verbose:      false
}
~~~`,
	}

	flowfileNotFoundIssue = &Issue{
		id: FlowfileNotFoundId,
		mdMsg: `
# No flowfile found!

We could not find the flowfile you asked to run.

## Things you can try:
- Check the path:
~~~
$ kogine flow run ./pipeline.cue
~~~

- Or describe the flow inline instead of a flowfile:
~~~
$ kogine flow parallel ./train.sh --config ./grid.sh --workers 4
~~~

## Example flowfile structure:
~~~cue
mode:    "parallel"
workers: 4

tasks: [
  {
    script: "./train.sh"
    config: "./grid.json"
  },
  {
    script:     "./report.sh"
    entrypoint: "summarize"
  },
]
~~~`,
	}

	flowfileParseErrorIssue = &Issue{
		id: FlowfileParseErrorId,
		mdMsg: `
# Failed to parse flowfile!

Your flowfile contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- Invalid values for known fields
- Missing required fields (script for tasks)

## Things you can try:
- Check the error message above for the specific line/column
- Validate your CUE syntax using the cue command-line tool
- Run with verbose mode for more details:
~~~
$ kogine --verbose flow run ./pipeline.cue
~~~

## Example of a valid task definition:
~~~cue
tasks: [
  {
    script: "./train.sh"
    config: "./grid.json"
  },
]
~~~`,
	}

	workerSpawnFailedIssue = &Issue{
		id: WorkerSpawnFailedId,
		mdMsg: `
# Worker process failed to start!

A parallel flow could not spawn one of its worker processes.

## Common causes:
- The kogine binary moved or was deleted while running
- Resource limits (process count, memory)
- A temporary directory that is not writable

## Things you can try:
- Lower the worker count:
~~~
$ kogine flow parallel ./train.sh --config ./grid.sh --workers 2
~~~

- Use the in-process pool instead of subprocesses:
~~~cue
mode: "pool"
~~~

- Check TMPDIR permissions; workers receive their config through a temp file`,
	}

	journalUnavailableIssue = &Issue{
		id: JournalUnavailableId,
		mdMsg: `
# Journal unavailable!

The run journal could not be opened, so history recording is off for this run.

## Things you can try:
- Check the journal path in your settings:
~~~cue
journal: {
  enabled: true
  path:    "/home/user/.config/kogine/history.db"
}
~~~

- Make sure the directory exists and is writable
- Use a .jsonl path for an append-only text journal instead of SQLite`,
	}

	issues = map[Id]*Issue{
		scriptNotFoundIssue.Id():     scriptNotFoundIssue,
		scriptLoadFailedIssue.Id():   scriptLoadFailedIssue,
		entrypointNotFoundIssue.Id(): entrypointNotFoundIssue,
		overrideRejectedIssue.Id():   overrideRejectedIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		streamStalledIssue.Id():      streamStalledIssue,
		settingsLoadFailedIssue.Id(): settingsLoadFailedIssue,
		flowfileNotFoundIssue.Id():   flowfileNotFoundIssue,
		flowfileParseErrorIssue.Id(): flowfileParseErrorIssue,
		workerSpawnFailedIssue.Id():  workerSpawnFailedIssue,
		journalUnavailableIssue.Id(): journalUnavailableIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
