// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package centralizes platform-specific concerns such as OS name
// constants for runtime.GOOS comparisons, so the string literals are not
// scattered across the codebase.
package platform
