// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"kogine/internal/config"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var (
	// configCmd groups configuration-source inspection.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration sources",
		Long: `Config inspects the files that drive script runs.

A configuration source is either a static file (CUE, JSON, TOML, YAML)
holding a single unit, or a shell script that assigns CONFIG (one unit)
or defines a config_gen function (a stream of units).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configValidateCmd = &cobra.Command{
		Use:   "validate <path>",
		Short: "Load a configuration source and report its shape",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	}

	configShowCmd = &cobra.Command{
		Use:   "show <path>",
		Short: "Print a configuration source's units",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigShow,
	}
)

func init() {
	configShowCmd.Flags().String("format", "text", "output format: text, json, yaml, toml")
	configShowCmd.Flags().Int("limit", 0, "stream units to show (0 means all)")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

type (
	// unitView is the serialization shape of one configuration unit.
	unitView struct {
		Overrides map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty" toml:"overrides,omitempty"`
		Args      []any          `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
		Kwargs    map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty" toml:"kwargs,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
	}

	// streamView wraps a stream's collected units for serialization.
	streamView struct {
		Units []unitView `json:"units" yaml:"units" toml:"units"`
	}
)

func runConfigValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	value, err := config.Load(ctx, args[0], config.LoadOptions{EngineTag: engineTag()})
	if err != nil {
		return reportError(cmd, err)
	}

	switch v := value.(type) {
	case *config.Config:
		fmt.Printf("%s %s: one configuration unit (%s)\n",
			SuccessStyle.Render("✓"), ValueStyle.Render(args[0]), unitSummary(v))
	case *config.Stream:
		units, err := v.Collect(0)
		_ = v.Close()
		if err != nil {
			return reportError(cmd, err)
		}
		fmt.Printf("%s %s: configuration stream, %d unit(s)\n",
			SuccessStyle.Render("✓"), ValueStyle.Render(args[0]), len(units))
		if verbose {
			for i, unit := range units {
				fmt.Printf("  unit %d: %s\n", i, unitSummary(unit))
			}
		}
	}

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := cmd.Context()

	value, err := config.Load(ctx, args[0], config.LoadOptions{EngineTag: engineTag()})
	if err != nil {
		return reportError(cmd, err)
	}

	units, stream, err := collectUnits(value, limit)
	if err != nil {
		return reportError(cmd, err)
	}

	switch format {
	case "text":
		renderUnitsText(args[0], units, stream)
		return nil
	case "json", "yaml", "toml":
		data, err := marshalUnits(format, units, stream)
		if err != nil {
			return reportError(cmd, err)
		}
		fmt.Print(string(data))
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Println()
		}
		return nil
	default:
		return reportIssueError(cmd, fmt.Errorf("unknown format %q (expected: text, json, yaml, toml)", format), 0, "")
	}
}

// collectUnits resolves a loaded source into its units: one for a discrete
// unit, up to limit (0 means all) for a stream.
func collectUnits(value config.Value, limit int) (units []*config.Config, stream bool, err error) {
	switch v := value.(type) {
	case *config.Config:
		return []*config.Config{v}, false, nil
	case *config.Stream:
		collected, err := v.Collect(limit)
		_ = v.Close()
		if err != nil {
			return nil, true, err
		}
		return collected, true, nil
	default:
		return nil, false, nil
	}
}

// unitSummary counts a unit's populated collections for display.
func unitSummary(c *config.Config) string {
	return fmt.Sprintf("overrides: %d, args: %d, kwargs: %d, metadata: %d",
		len(c.Overrides), len(c.Args), len(c.Kwargs), len(c.Metadata))
}

// marshalUnits serializes the units in the requested format: a bare object
// for a discrete unit, a wrapping "units" list for a stream.
func marshalUnits(format string, units []*config.Config, stream bool) ([]byte, error) {
	var payload any
	if stream {
		view := streamView{Units: make([]unitView, len(units))}
		for i, unit := range units {
			view.Units[i] = viewOf(unit)
		}
		payload = view
	} else if len(units) > 0 {
		payload = viewOf(units[0])
	}

	switch format {
	case "json":
		return json.MarshalIndent(payload, "", "  ")
	case "yaml":
		return yaml.Marshal(payload)
	default:
		return toml.Marshal(payload)
	}
}

// viewOf reshapes a unit for serialization, rewriting json.Number leaves
// into native numbers so the YAML and TOML encoders emit numbers rather
// than quoted strings.
func viewOf(unit *config.Config) unitView {
	return unitView{
		Overrides: displayMap(unit.Overrides),
		Args:      displaySlice(unit.Args),
		Kwargs:    displayMap(unit.Kwargs),
		Metadata:  displayMap(unit.Metadata),
	}
}

func displayMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = displayValue(v)
	}
	return out
}

func displaySlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = displayValue(v)
	}
	return out
}

func displayValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return displayMap(val)
	case []any:
		return displaySlice(val)
	default:
		return v
	}
}

// renderUnitsText prints the units with the same styling the rest of the
// CLI uses: keys in the value style, values in the success style.
func renderUnitsText(path string, units []*config.Config, stream bool) {
	kind := "configuration unit"
	if stream {
		kind = fmt.Sprintf("configuration stream, %d unit(s)", len(units))
	}

	fmt.Println(TitleStyle.Render("Configuration Source"))
	fmt.Println()
	fmt.Printf("%s: %s\n", ValueStyle.Render("source"), path)
	fmt.Printf("%s: %s\n", ValueStyle.Render("kind"), kind)

	for i, unit := range units {
		fmt.Println()
		if stream {
			fmt.Println(SubtitleStyle.Render(fmt.Sprintf("Unit %d", i)))
		}
		renderUnitText(unit)
	}
}

func renderUnitText(unit *config.Config) {
	renderMapText("overrides", unit.Overrides)
	if len(unit.Args) > 0 {
		fmt.Printf("%s:\n", ValueStyle.Render("args"))
		for _, v := range unit.Args {
			fmt.Printf("  - %s\n", SuccessStyle.Render(fmt.Sprintf("%v", v)))
		}
	}
	renderMapText("kwargs", unit.Kwargs)
	renderMapText("metadata", unit.Metadata)
}

func renderMapText(name string, m map[string]any) {
	if len(m) == 0 {
		return
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", ValueStyle.Render(name))
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, SuccessStyle.Render(fmt.Sprintf("%v", m[k])))
	}
}
