// SPDX-License-Identifier: MPL-2.0

package flowfile

import (
	_ "embed"
	"fmt"
	"os"

	"kogine/pkg/cueutil"
)

//go:embed flowfile_schema.cue
var flowfileSchema string

// Parse reads and parses a flowfile from the given path.
func Parse(path string) (*Flowfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flowfile at %s: %w", path, err)
	}

	return ParseBytes(data, path)
}

// ParseBytes parses flowfile content from bytes.
// Uses cueutil.ParseAndDecodeString for the 3-step CUE parsing flow:
// compile schema → compile user data → validate and decode.
func ParseBytes(data []byte, path string) (*Flowfile, error) {
	result, err := cueutil.ParseAndDecodeString[Flowfile](
		flowfileSchema,
		data,
		"#Flowfile",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	f := result.Value
	f.FilePath = path

	if err := f.validate(); err != nil {
		return nil, err
	}

	return f, nil
}
