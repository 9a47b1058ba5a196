// SPDX-License-Identifier: MPL-2.0

// Package settings loads tool-level settings for kogine.
//
// Settings live in a CUE file validated against an embedded schema, merged
// over built-in defaults, with KOGINE_* environment variables taking
// precedence over the file. Script configuration is a separate concern and
// is handled by internal/config.
package settings

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"kogine/internal/issue"
	"kogine/pkg/cueutil"
	"kogine/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "kogine"
	// SettingsFileName is the name of the settings file (without extension).
	SettingsFileName = "settings"
	// SettingsFileExt is the settings file extension.
	SettingsFileExt = "cue"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "KOGINE"
)

//go:embed settings_schema.cue
var settingsSchema string

// LoadOptions controls where Load looks for the settings file.
type LoadOptions struct {
	// SettingsFilePath, when non-empty, is used exclusively; the platform
	// settings directory is not consulted.
	SettingsFilePath string
	// SettingsDirPath overrides the platform settings directory.
	SettingsDirPath string
}

// Dir returns the kogine settings directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application
// Support, and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
func Dir() (string, error) {
	// Allow tests to override the settings directory
	if settingsDirOverride != "" {
		return settingsDirOverride, nil
	}

	var dir string

	switch runtime.GOOS {
	case platform.Windows:
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(dir, AppName), nil
}

// DefaultJournalPath returns the journal location used when journal.path is
// left empty in the settings file.
func DefaultJournalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load reads the settings file (if any), applies environment overrides, and
// returns the merged settings along with the resolved file path. A missing
// settings file is not an error: defaults are returned with an empty path.
func Load(ctx context.Context, opts LoadOptions) (*Settings, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := Default()
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("mode", string(defaults.Mode))
	v.SetDefault("journal.enabled", defaults.Journal.Enabled)
	v.SetDefault("journal.path", defaults.Journal.Path)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom settings file path is set via --settings flag, use it exclusively.
	if opts.SettingsFilePath != "" {
		if !fileExists(opts.SettingsFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(opts.SettingsFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'kogine settings show' to see the effective settings").
				Wrap(fmt.Errorf("settings file not found: %s", opts.SettingsFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.SettingsFilePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(opts.SettingsFilePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the expected schema").
				Wrap(err).
				BuildError()
		}
		resolvedPath = opts.SettingsFilePath
	} else {
		dir, err := dirWithOverride(opts.SettingsDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", issue.NewErrorContext().
					WithOperation("load settings").
					WithResource(cuePath).
					WithSuggestion("Check that the file contains valid CUE syntax").
					WithSuggestion("Verify the values match the expected schema").
					Wrap(err).
					BuildError()
			}
			resolvedPath = cuePath
		}
		// If no settings file found, use defaults (no error)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", fmt.Errorf("failed to parse settings: %w", err)
	}

	// Environment overrides bypass the CUE schema, so re-check value constraints.
	if err := s.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate settings").
			WithSuggestion("Check KOGINE_* environment variables for typos").
			WithSuggestion("Run 'kogine settings show' to inspect the effective settings").
			Wrap(err).
			BuildError()
	}

	return &s, resolvedPath, nil
}

// dirWithOverride resolves the settings directory, honoring explicit
// options before platform defaults.
func dirWithOverride(dirPath string) (string, error) {
	if dirPath != "" {
		return dirPath, nil
	}

	return Dir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Settings
// schema, and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because:
// 1. Settings decode to map[string]any (not a struct) for Viper integration
// 2. Uses Concrete(false) because settings fields are optional
// 3. Needs to merge into Viper's config map, not return a struct
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(settingsSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile settings schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Settings"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var settingsMap map[string]any
	if err := unified.Decode(&settingsMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(settingsMap); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureDir creates the settings directory if it doesn't exist
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// CreateDefault seeds the standard settings file with the built-in defaults.
// An existing file is left untouched.
func CreateDefault() error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	dir, err := Dir()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if fileExists(path) {
		return nil
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(Default())), 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the settings, suitable for
// seeding a settings file.
func GenerateCUE(s *Settings) string {
	var sb strings.Builder

	sb.WriteString("// Kogine Settings File\n\n")

	sb.WriteString(fmt.Sprintf("workers: %d\n", s.Workers))
	sb.WriteString(fmt.Sprintf("mode: %q\n", s.Mode))

	sb.WriteString("\njournal: {\n")
	sb.WriteString(fmt.Sprintf("\tenabled: %v\n", s.Journal.Enabled))
	if s.Journal.Path != "" {
		sb.WriteString(fmt.Sprintf("\tpath: %q\n", s.Journal.Path))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	sb.WriteString(fmt.Sprintf("\tverbose: %v\n", s.UI.Verbose))
	sb.WriteString(fmt.Sprintf("\tcolor_scheme: %q\n", s.UI.ColorScheme))
	sb.WriteString("}\n")

	return sb.String()
}
