// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"sync"

	"kogine/internal/scriptenv"
)

// Registry tracks loaded script units by identity. Units loaded in library
// mode persist under their own name; the reserved main identity is a slot
// that executions borrow and hand back, so nested runs always observe a
// consistent registry.
type Registry struct {
	mu    sync.Mutex
	units map[string]*Script
}

// defaultRegistry is the process-wide registry used when Options leaves
// Registry nil.
var defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Script)}
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Install records s under identity and returns a restore function. For the
// reserved main identity the previous occupant (if any) is put back when
// restore runs; other identities persist and restore is a no-op.
// Restore always runs via defer in the executor, whether the run succeeds
// or fails.
func (r *Registry) Install(identity string, s *Script) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.units[identity]
	r.units[identity] = s

	if identity != scriptenv.MainName {
		return func() {}
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.units[identity] = prev
		} else {
			delete(r.units, identity)
		}
	}
}

// Lookup returns the unit registered under identity, if any.
func (r *Registry) Lookup(identity string) (*Script, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.units[identity]
	return s, ok
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.units)
}

// Snapshot returns a copy of the registry's current contents.
func (r *Registry) Snapshot() map[string]*Script {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*Script, len(r.units))
	for k, v := range r.units {
		out[k] = v
	}
	return out
}
