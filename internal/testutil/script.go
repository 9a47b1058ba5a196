// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScript writes a shell script named name into dir and returns its path.
// The file is made executable. The test fails immediately if the write fails.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", path, err)
	}
	return path
}

// TempScript writes a shell script into a fresh temporary directory owned by
// the test and returns its path.
func TempScript(t testing.TB, name, body string) string {
	t.Helper()
	return WriteScript(t, t.TempDir(), name, body)
}
