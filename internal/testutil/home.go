// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the current user's home directory at dir for the duration
// of a test. It returns a cleanup function that restores the original value.
//
// os.UserHomeDir() reads HOME on Unix-like systems and USERPROFILE on
// Windows, so the right variable is chosen per platform.
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}
