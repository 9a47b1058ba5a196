// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"

	"kogine/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

//go:embed config_schema.cue
var sourceSchema string

// loadJSON decodes a JSON source: an object is one unit, an array of
// objects is an eager stream.
func loadJSON(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration source: %w", err)
	}

	dec := newNumberDecoder(data)
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return valueFromDecoded(raw, path)
}

// loadCUE evaluates a CUE source and validates it against the embedded
// #Config schema before decoding.
//
// This parses CUE manually instead of going through cueutil.ParseAndDecode:
// sources decode to map[string]any (not a struct), and list sources must be
// unified with the schema element by element.
func loadCUE(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration source: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	cctx := cuecontext.New()
	schemaValue := cctx.CompileString(sourceSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile source schema: %w", schemaValue.Err())
	}
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))

	userValue := cctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, &FormatError{Path: path, Err: cueutil.FormatError(userValue.Err(), path)}
	}

	if userValue.Kind() == cue.ListKind {
		iter, err := userValue.List()
		if err != nil {
			return nil, &FormatError{Path: path, Err: err}
		}
		var configs []*Config
		for iter.Next() {
			cfg, err := decodeCUEUnit(schema, iter.Value(), path)
			if err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
		}
		return FromSlice(configs), nil
	}

	return decodeCUEUnit(schema, userValue, path)
}

func decodeCUEUnit(schema, v cue.Value, path string) (*Config, error) {
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &FormatError{Path: path, Err: cueutil.FormatError(err, path)}
	}
	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return nil, &FormatError{Path: path, Err: cueutil.FormatError(err, path)}
	}
	return FromMap(m)
}

// loadTOML decodes a TOML source: a table is one unit, and an array of
// tables named "configs" is an eager stream.
func loadTOML(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration source: %w", err)
	}

	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	if raw, ok := m["configs"]; ok && len(m) == 1 {
		items, ok := anySlice(raw)
		if !ok {
			return nil, &FormatError{Path: path, Reason: `"configs" must be an array of tables`}
		}
		return valueFromDecoded(items, path)
	}
	return FromMap(m)
}

// loadYAML decodes a YAML source: a mapping is one unit, a sequence of
// mappings is an eager stream.
func loadYAML(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration source: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if raw == nil {
		return nil, &FormatError{Path: path, Reason: "empty configuration source"}
	}
	return valueFromDecoded(raw, path)
}

// valueFromDecoded maps decoded dynamic data onto a unit or an eager stream.
func valueFromDecoded(raw any, path string) (Value, error) {
	switch val := raw.(type) {
	case map[string]any:
		return FromMap(val)
	case []any:
		var configs []*Config
		for i, item := range val {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &FormatError{
					Path:   path,
					Reason: fmt.Sprintf("element %d is %T, want an object", i, item),
				}
			}
			cfg, err := FromMap(obj)
			if err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
		}
		return FromSlice(configs), nil
	default:
		return nil, &FormatError{
			Path:   path,
			Reason: fmt.Sprintf("top-level value is %T, want an object or a list of objects", raw),
		}
	}
}

// anySlice normalizes the slice shapes TOML decoding can produce.
func anySlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
