// SPDX-License-Identifier: MPL-2.0

// Package flowfile provides types and parsing for flowfile.cue flow definitions.
//
// A flowfile declares a batch of script runs: the tasks (script path, optional
// configuration source, optional entrypoint), the orchestration mode, and the
// worker count for parallel flows. This package handles CUE schema validation
// and parsing to Go structs; executing the flow is the caller's concern.
package flowfile
