// Package symbol implements the process-wide symbol interning registry.
//
// The original source keeps this as a global singleton (regimeflow/common's
// SymbolRegistry::instance()); here it is a shared handle constructed once
// and passed through the engine rather than a package-level global, so
// multiple backtests in the same process (e.g. parallel parameter sweeps)
// don't share state unless they're explicitly given the same Registry.
package symbol

import "sync"

// ID is a dense 32-bit identifier assigned by a Registry. The zero value is
// reserved and never returned by Intern.
type ID uint32

// Registry interns symbol strings to dense IDs and back. It is safe for
// concurrent use; in practice it's read-only after warm-up.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]ID
	byID    []string // byID[0] is unused (id 0 is reserved)
	nextID  ID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]ID),
		byID:   []string{""},
		nextID: 1,
	}
}

// Intern returns the ID for name, assigning a new one if this is the first
// time name has been seen.
func (r *Registry) Intern(name string) ID {
	r.mu.RLock()
	if id, ok := r.byName[name]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.byName[name] = id
	r.byID = append(r.byID, name)
	return id
}

// Lookup returns the name previously interned for id, or "" if unset.
func (r *Registry) Lookup(id ID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return ""
	}
	return r.byID[id]
}

// TryIntern returns the ID for name without assigning one, reporting
// whether it has been interned already.
func (r *Registry) TryIntern(name string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Len reports how many distinct symbols have been interned.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID) - 1
}
