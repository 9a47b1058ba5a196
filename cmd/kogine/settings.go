// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"kogine/internal/issue"
	"kogine/internal/settings"

	"github.com/spf13/cobra"
)

// settingsCmd manages the tool's own configuration, as opposed to the
// configuration sources scripts run against.
var (
	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Manage kogine settings",
		Long: `Manage kogine settings.

Settings are stored in:
  - Linux: ~/.config/kogine/settings.cue
  - macOS: ~/Library/Application Support/kogine/settings.cue
  - Windows: %APPDATA%\kogine\settings.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	settingsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE:  runSettingsShow,
	}

	settingsInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a default settings file",
		RunE:  runSettingsInit,
	}

	settingsPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Show the settings file path",
		RunE:  runSettingsPath,
	}

	settingsDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Output current settings as CUE",
		RunE:  runSettingsDump,
	}
)

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsInitCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsDumpCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	// Style definitions using shared color palette
	keyStyle := ValueStyle
	valueStyle := SuccessStyle

	fmt.Println(TitleStyle.Render("Current Settings"))
	fmt.Println()

	if settingsPath != "" {
		fmt.Printf("%s: %s\n", keyStyle.Render("Settings file"), settingsPath)
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Settings file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	fmt.Printf("%s: %s\n", keyStyle.Render("workers"), valueStyle.Render(fmt.Sprintf("%d", toolSettings.Workers)))
	fmt.Printf("%s: %s\n", keyStyle.Render("mode"), valueStyle.Render(string(toolSettings.Mode)))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("journal"))
	fmt.Printf("  enabled: %s\n", valueStyle.Render(fmt.Sprintf("%v", toolSettings.Journal.Enabled)))
	if toolSettings.Journal.Path != "" {
		fmt.Printf("  path: %s\n", valueStyle.Render(toolSettings.Journal.Path))
	} else if path, err := settings.DefaultJournalPath(); err == nil {
		fmt.Printf("  path: %s %s\n", valueStyle.Render(path), SubtitleStyle.Render("(default)"))
	}

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("ui"))
	fmt.Printf("  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", toolSettings.UI.Verbose)))
	fmt.Printf("  color_scheme: %s\n", valueStyle.Render(string(toolSettings.UI.ColorScheme)))

	return nil
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	if err := settings.CreateDefault(); err != nil {
		return reportIssueError(cmd, err, issue.SettingsLoadFailedId, "")
	}

	dir, err := settings.Dir()
	if err != nil {
		return reportIssueError(cmd, err, issue.SettingsLoadFailedId, "")
	}

	fmt.Printf("%s Created default settings at %s\n", SuccessStyle.Render("✓"),
		filepath.Join(dir, settings.SettingsFileName+"."+settings.SettingsFileExt))
	return nil
}

func runSettingsPath(cmd *cobra.Command, args []string) error {
	dir, err := settings.Dir()
	if err != nil {
		return reportIssueError(cmd, err, issue.SettingsLoadFailedId, "")
	}

	fmt.Printf("Settings directory: %s\n", dir)
	fmt.Printf("Settings file: %s\n", filepath.Join(dir, settings.SettingsFileName+"."+settings.SettingsFileExt))

	if path, err := settings.DefaultJournalPath(); err == nil {
		fmt.Printf("Journal file: %s\n", path)
	}

	return nil
}

func runSettingsDump(cmd *cobra.Command, args []string) error {
	fmt.Print(settings.GenerateCUE(toolSettings))
	return nil
}
