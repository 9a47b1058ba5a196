// SPDX-License-Identifier: MPL-2.0

// Package config defines the configuration unit fed into script executions,
// lazy streams of such units, and the loader that resolves units and streams
// from external sources (shell scripts and static data files).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is what loading a configuration source produces: either a single
// *Config or a lazy *Stream.
type Value interface {
	configValue()
}

// Config is one configuration unit: everything a single script execution
// receives beyond the script itself. Loaders always return units whose
// collections are non-nil; treat a unit as read-only once constructed.
type Config struct {
	// Overrides replace top-level script variables before the entrypoint runs.
	Overrides map[string]any `json:"overrides"`
	// Args are positional arguments for the entrypoint.
	Args []any `json:"args"`
	// Kwargs are keyword arguments, delivered as call-scoped variables.
	Kwargs map[string]any `json:"kwargs"`
	// Metadata carries free-form annotations; never injected, never passed.
	Metadata map[string]any `json:"metadata"`
}

// New returns an empty configuration unit.
func New() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// FromMap builds a configuration unit from decoded dynamic data. Every field
// is optional; present fields must have the unit layout's shape.
func FromMap(m map[string]any) (*Config, error) {
	c := New()
	for key, val := range m {
		switch key {
		case "overrides", "kwargs", "metadata":
			dst, err := asStringMap(key, val)
			if err != nil {
				return nil, err
			}
			switch key {
			case "overrides":
				c.Overrides = dst
			case "kwargs":
				c.Kwargs = dst
			default:
				c.Metadata = dst
			}
		case "args":
			dst, err := asSlice(key, val)
			if err != nil {
				return nil, err
			}
			c.Args = dst
		default:
			return nil, &UnknownFieldError{Field: key}
		}
	}
	return c, nil
}

// Clone returns a copy with fresh top-level collections, so a unit pulled
// from a stream can be handed to a worker without sharing.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := New()
	for k, v := range c.Overrides {
		out.Overrides[k] = v
	}
	out.Args = append(out.Args, c.Args...)
	for k, v := range c.Kwargs {
		out.Kwargs[k] = v
	}
	for k, v := range c.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// String returns a compact summary for logs.
func (c *Config) String() string {
	return fmt.Sprintf("config(overrides=%d args=%d kwargs=%d metadata=%d)",
		len(c.Overrides), len(c.Args), len(c.Kwargs), len(c.Metadata))
}

func (c *Config) configValue() {}

// normalize fills nil collections so loaders uphold the non-nil invariant.
func (c *Config) normalize() {
	if c.Overrides == nil {
		c.Overrides = map[string]any{}
	}
	if c.Args == nil {
		c.Args = []any{}
	}
	if c.Kwargs == nil {
		c.Kwargs = map[string]any{}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
}

func asStringMap(field string, v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out, nil
	default:
		return nil, &FieldTypeError{Field: field, Value: v, Want: "an object with string keys"}
	}
}

func asSlice(field string, v any) ([]any, error) {
	switch val := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out, nil
	default:
		return nil, &FieldTypeError{Field: field, Value: v, Want: "an array"}
	}
}

// decodeUnitJSON decodes one JSON object in the unit layout. Numbers are
// kept as json.Number so they render back into shell text verbatim.
func decodeUnitJSON(data []byte) (*Config, error) {
	m, err := decodeObjectJSON(data)
	if err != nil {
		return nil, err
	}
	return FromMap(m)
}

func decodeObjectJSON(data []byte) (map[string]any, error) {
	dec := newNumberDecoder(data)
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is %T, want an object", raw)
	}
	return m, nil
}

func newNumberDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}
