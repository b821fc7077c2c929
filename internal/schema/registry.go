// Package schema defines per-provider credential field schemas and the
// registry that maps provider names to them. The registry is an explicit
// object constructed once at startup and injected into the token store and
// the toolkit configuration layer; there is no package-level mutable state.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// FieldSpec describes one field of a provider's credential record.
// Secret fields are encrypted before write and decrypted after read;
// required fields must be present on every upsert.
type FieldSpec struct {
	Name     string
	Secret   bool
	Required bool
}

// Schema is the ordered field layout of one provider's credential record.
type Schema struct {
	Provider string
	Fields   []FieldSpec
}

// Field returns the spec for the named field and whether it exists.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate checks a field map against the schema. It returns the name of the
// first offending field and a reason ("unknown_field" or "missing_field"),
// or ok=true when the map is acceptable. Iteration over the map is sorted so
// the reported field is deterministic.
func (s Schema) Validate(fields map[string]string) (field, reason string, ok bool) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, found := s.Field(name); !found {
			return name, "unknown_field", false
		}
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if v, present := fields[f.Name]; !present || v == "" {
			return f.Name, "missing_field", false
		}
	}
	return "", "", true
}

// equal reports whether two schemas have the same provider name and an
// identical ordered field list.
func (s Schema) equal(other Schema) bool {
	if s.Provider != other.Provider || len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// Registry maps provider names to their credential schemas. Registration is
// append-only: re-registering an identical schema is a no-op, re-registering
// a different schema under the same name is an error so that independently
// wired modules cannot silently drift.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register adds a provider schema. Identical re-registration is a no-op.
func (r *Registry) Register(s Schema) error {
	if s.Provider == "" {
		return fmt.Errorf("register schema: empty provider name")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("register schema %q: no fields", s.Provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.schemas[s.Provider]; ok {
		if existing.equal(s) {
			return nil
		}
		return fmt.Errorf("register schema %q: conflicts with existing registration", s.Provider)
	}

	r.schemas[s.Provider] = s
	return nil
}

// Get returns the schema for the named provider.
func (r *Registry) Get(provider string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[provider]
	return s, ok
}

// Providers returns all registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
