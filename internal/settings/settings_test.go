// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"kogine/internal/testutil"
)

func TestDefault(t *testing.T) {
	s := Default()

	if s.Workers != 0 {
		t.Errorf("expected default workers to be 0 (auto), got %d", s.Workers)
	}
	if s.Mode != ModeSubprocess {
		t.Errorf("expected default mode to be subprocess, got %s", s.Mode)
	}
	if s.Journal.Enabled {
		t.Error("expected journal to be disabled by default")
	}
	if s.Journal.Path != "" {
		t.Errorf("expected default journal path to be empty, got %q", s.Journal.Path)
	}
	if s.UI.Verbose {
		t.Error("expected default verbose to be false")
	}
	if s.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("expected default color scheme to be auto, got %s", s.UI.ColorScheme)
	}
}

func TestDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME resolution is Linux-specific")
	}

	restoreXDG := testutil.MustSetenv(t, "XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	defer restoreXDG()

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() returned error: %v", err)
	}

	expected := filepath.Join("/tmp/test-xdg-config", AppName)
	if dir != expected {
		t.Errorf("Dir() = %s, want %s", dir, expected)
	}

	restoreXDG()
	restoreUnset := testutil.MustUnsetenv(t, "XDG_CONFIG_HOME")
	defer restoreUnset()

	dir, err = Dir()
	if err != nil {
		t.Fatalf("Dir() returned error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected = filepath.Join(home, ".config", AppName)
	if dir != expected {
		t.Errorf("Dir() = %s, want %s", dir, expected)
	}
}

func TestDirOverride(t *testing.T) {
	tmpDir := t.TempDir()
	SetDirOverride(tmpDir)
	defer Reset()

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() returned error: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("Dir() = %s, want override %s", dir, tmpDir)
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	SetDirOverride(t.TempDir())
	defer Reset()

	s, path, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty resolved path, got %q", path)
	}
	if s.Mode != ModeSubprocess {
		t.Errorf("Mode = %s, want subprocess", s.Mode)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	content := `workers: 4
mode: "pool"

journal: {
	enabled: true
	path: "/tmp/kogine-journal.db"
}

ui: {
	verbose: true
	color_scheme: "dark"
}
`
	cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if err := os.WriteFile(cuePath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	s, path, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != cuePath {
		t.Errorf("resolved path = %q, want %q", path, cuePath)
	}
	if s.Workers != 4 {
		t.Errorf("Workers = %d, want 4", s.Workers)
	}
	if s.Mode != ModePool {
		t.Errorf("Mode = %s, want pool", s.Mode)
	}
	if !s.Journal.Enabled {
		t.Error("expected journal to be enabled")
	}
	if s.Journal.Path != "/tmp/kogine-journal.db" {
		t.Errorf("Journal.Path = %q, want /tmp/kogine-journal.db", s.Journal.Path)
	}
	if !s.UI.Verbose {
		t.Error("expected verbose to be true")
	}
	if s.UI.ColorScheme != ColorSchemeDark {
		t.Errorf("ColorScheme = %s, want dark", s.UI.ColorScheme)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if err := os.WriteFile(cuePath, []byte("workers: 2\n"), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	s, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if s.Workers != 2 {
		t.Errorf("Workers = %d, want 2", s.Workers)
	}
	if s.Mode != ModeSubprocess {
		t.Errorf("Mode = %s, want default subprocess", s.Mode)
	}
	if s.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("ColorScheme = %s, want default auto", s.UI.ColorScheme)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, _, err := Load(context.Background(), LoadOptions{
		SettingsFilePath: filepath.Join(t.TempDir(), "absent.cue"),
	})
	if err == nil {
		t.Fatal("expected error for missing explicit settings file")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if err := os.WriteFile(cuePath, []byte("workres: 3\n"), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	if _, _, err := Load(context.Background(), LoadOptions{}); err == nil {
		t.Fatal("expected error for unknown settings field")
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if err := os.WriteFile(cuePath, []byte("mode: \"turbo\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	if _, _, err := Load(context.Background(), LoadOptions{}); err == nil {
		t.Fatal("expected error for invalid mode value")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	SetDirOverride(t.TempDir())
	defer Reset()

	restoreWorkers := testutil.MustSetenv(t, "KOGINE_WORKERS", "3")
	defer restoreWorkers()
	restoreMode := testutil.MustSetenv(t, "KOGINE_MODE", "pool")
	defer restoreMode()

	s, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if s.Workers != 3 {
		t.Errorf("Workers = %d, want env override 3", s.Workers)
	}
	if s.Mode != ModePool {
		t.Errorf("Mode = %s, want env override pool", s.Mode)
	}
}

func TestLoadEnvOverrideInvalidMode(t *testing.T) {
	SetDirOverride(t.TempDir())
	defer Reset()

	restore := testutil.MustSetenv(t, "KOGINE_MODE", "turbo")
	defer restore()

	_, _, err := Load(context.Background(), LoadOptions{})
	if err == nil {
		t.Fatal("expected error for invalid env mode")
	}
	if !errors.Is(err, ErrInvalidFlowMode) {
		t.Errorf("expected ErrInvalidFlowMode, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Settings) {},
			wantErr: nil,
		},
		{
			name:    "negative workers",
			mutate:  func(s *Settings) { s.Workers = -1 },
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "bad mode",
			mutate:  func(s *Settings) { s.Mode = "turbo" },
			wantErr: ErrInvalidFlowMode,
		},
		{
			name:    "bad color scheme",
			mutate:  func(s *Settings) { s.UI.ColorScheme = "sepia" },
			wantErr: ErrInvalidColorScheme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)

			err := s.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() returned error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	s := Default()
	s.Workers = 6
	s.Mode = ModePool
	s.Journal.Enabled = true
	s.UI.ColorScheme = ColorSchemeLight

	cuePath := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	if err := os.WriteFile(cuePath, []byte(GenerateCUE(s)), 0o644); err != nil {
		t.Fatalf("failed to write generated settings: %v", err)
	}

	loaded, _, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.Workers != 6 || loaded.Mode != ModePool || !loaded.Journal.Enabled || loaded.UI.ColorScheme != ColorSchemeLight {
		t.Errorf("round trip mismatch: got %+v", loaded)
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, AppName)

	SetDirOverride(dir)
	defer Reset()

	if err := EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() returned error: %v", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("EnsureDir() did not create directory %s", dir)
	}
}

func TestCreateDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AppName)
	SetDirOverride(dir)
	defer Reset()

	if err := CreateDefault(); err != nil {
		t.Fatalf("CreateDefault() returned error: %v", err)
	}

	path := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	loaded, _, err := Load(context.Background(), LoadOptions{SettingsFilePath: path})
	if err != nil {
		t.Fatalf("Load() of seeded file returned error: %v", err)
	}
	if loaded.Mode != ModeSubprocess || loaded.Workers != 0 {
		t.Errorf("seeded settings = %+v, want the built-in defaults", loaded)
	}
}

func TestCreateDefaultKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	SetDirOverride(dir)
	defer Reset()

	path := filepath.Join(dir, SettingsFileName+"."+SettingsFileExt)
	custom := "workers: 9\n"
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	if err := CreateDefault(); err != nil {
		t.Fatalf("CreateDefault() returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read settings file: %v", err)
	}
	if string(data) != custom {
		t.Errorf("CreateDefault() overwrote the existing file: got %q", string(data))
	}
}
