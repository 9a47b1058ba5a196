// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"maps"
	"sort"
	"strings"

	"kogine/internal/scriptenv"

	"mvdan.cc/sh/v3/expand"
)

// BuildOverrides renders override values as a fragment of shell assignments,
// one per line, in deterministic name order.
//
// Every name is validated before anything is rendered: a single protected or
// malformed name rejects the whole set, so the unit never observes a
// partially applied override map.
func BuildOverrides(overrides map[string]any) (string, error) {
	if len(overrides) == 0 {
		return "", nil
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if scriptenv.IsProtected(name) {
			return "", &ProtectedNameError{Name: name}
		}
		if !scriptenv.IsIdentifier(name) {
			return "", &InvalidNameError{Name: name}
		}
	}

	var sb strings.Builder
	for _, name := range names {
		assign, err := scriptenv.Assignment(name, overrides[name])
		if err != nil {
			return "", err
		}
		sb.WriteString(assign)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// UserVars extracts the plain data a script's namespace holds: every shell
// variable that is not underscore-prefixed (which covers the engine
// attributes) comes back by name. Scalars are strings, indexed arrays are
// string slices, associative arrays are string maps. Functions live in the
// interpreter's function table rather than the variable table, so callables
// are excluded by construction.
//
// This is advisory tooling for inspecting a loaded unit; injection never
// goes through it.
func UserVars(vars map[string]expand.Variable) map[string]any {
	out := make(map[string]any)
	for name, v := range vars {
		if strings.HasPrefix(name, "_") || !scriptenv.IsIdentifier(name) {
			continue
		}
		switch v.Kind {
		case expand.String:
			out[name] = v.Str
		case expand.Indexed:
			out[name] = append([]string(nil), v.List...)
		case expand.Associative:
			m := make(map[string]string, len(v.Map))
			maps.Copy(m, v.Map)
			out[name] = m
		}
	}
	return out
}
