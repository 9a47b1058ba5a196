// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"sort"
	"strings"

	"kogine/internal/config"
	"kogine/internal/scriptenv"

	"mvdan.cc/sh/v3/syntax"
)

// resolveEntrypoint picks the function to invoke for a unit.
//
// An explicit entrypoint must exist; there is no fallback past it. Otherwise
// the identity-guard designation wins, then a main function, then the unit
// has no entrypoint.
func resolveEntrypoint(s *Script, an *Analysis, funcs map[string]*syntax.Stmt) (string, error) {
	if s.Entrypoint != "" {
		if _, ok := funcs[s.Entrypoint]; !ok {
			return "", &EntrypointNotFoundError{Script: s.Path, Explicit: s.Entrypoint}
		}
		return s.Entrypoint, nil
	}

	if an.GuardEntrypoint != "" {
		if _, ok := funcs[an.GuardEntrypoint]; ok {
			return an.GuardEntrypoint, nil
		}
	}

	if _, ok := funcs[MainFunc]; ok {
		return MainFunc, nil
	}

	return "", &EntrypointNotFoundError{Script: s.Path}
}

// composeInvocation renders the entrypoint call with the unit's arguments
// bound gracefully: keyword arguments become prefix assignments when the
// function reads the variable (or reads $@/$*, accepting everything), and
// positional arguments are passed only when the function expands positional
// parameters. Inputs the function cannot observe are dropped silently, as
// are keywords with protected or malformed names.
//
// Prefix assignments are always scalar, so compound keyword values are
// rendered as JSON text.
func composeInvocation(entrypoint string, b *Binding, cfg *config.Config) (string, error) {
	parts := make([]string, 0, 1+len(cfg.Kwargs)+len(cfg.Args))

	names := make([]string, 0, len(cfg.Kwargs))
	for name := range cfg.Kwargs {
		names = append(names, name)
	}
	// Deterministic order keeps runs reproducible.
	sort.Strings(names)

	for _, name := range names {
		if scriptenv.IsProtected(name) || !scriptenv.IsIdentifier(name) {
			continue
		}
		if !b.Open && !b.Reads[name] {
			continue
		}
		lit, err := scriptenv.Literal(cfg.Kwargs[name])
		if err != nil {
			return "", err
		}
		parts = append(parts, name+"="+lit)
	}

	parts = append(parts, entrypoint)

	if b.Positional {
		for _, arg := range cfg.Args {
			lit, err := scriptenv.Literal(arg)
			if err != nil {
				return "", err
			}
			parts = append(parts, lit)
		}
	}

	return strings.Join(parts, " "), nil
}
