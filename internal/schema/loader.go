package schema

import (
	"fmt"
	"os"
	"sync"
)

// Registry holds the parsed content type definitions for the process. The
// definitions are read-mostly: Load replaces the whole map under a write
// lock, lookups take a read lock, and the ContentType values themselves are
// never mutated after parse. Callers must serialize (re)loading; concurrent
// lookups are safe.
type Registry struct {
	path     string
	defaults Defaults

	mu    sync.RWMutex
	types map[string]ContentType
}

// NewRegistry creates a Registry reading from the given contenttypes YAML
// file. Call Load before the first lookup.
func NewRegistry(path string, defaults Defaults) *Registry {
	return &Registry{
		path:     path,
		defaults: defaults,
		types:    map[string]ContentType{},
	}
}

// Load reads and parses the configuration file, replacing the registry's
// definitions atomically. On error the previous definitions stay in place.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("reading contenttypes file %q: %w", r.path, err)
	}

	types, err := ParseBytes(data, r.defaults)
	if err != nil {
		return fmt.Errorf("loading contenttypes file %q: %w", r.path, err)
	}

	r.mu.Lock()
	r.types = types
	r.mu.Unlock()

	return nil
}

// Get returns the content type with the given slug.
func (r *Registry) Get(slug string) (ContentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.types[slug]
	return ct, ok
}

// All returns a copy of the definition map.
func (r *Registry) All() map[string]ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ContentType, len(r.types))
	for slug, ct := range r.types {
		out[slug] = ct
	}
	return out
}
