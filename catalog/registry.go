package catalog

import (
	"fmt"
	"strings"
)

// Registry is the read-only, process-wide set of block types
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry builds a registry, rejecting entries that break catalog
// invariants
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]Entry, len(entries)),
		order:   make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		if _, exists := r.entries[e.Key]; exists {
			return nil, ErrInvalidEntry().
				WithDetail("key", e.Key).
				WithDetail("reason", "duplicate key")
		}
		r.entries[e.Key] = e
		r.order = append(r.order, e.Key)
	}

	return r, nil
}

// MustRegistry panics when the entries are invalid
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup resolves "blockKey" or "blockKey.subKey". The returned subKey is
// empty for plain keys.
func (r *Registry) Lookup(catalogKey string) (Entry, string, error) {
	blockKey, subKey := SplitKey(catalogKey)

	entry, ok := r.entries[blockKey]
	if !ok {
		return Entry{}, "", ErrEntryNotFound().WithDetail("key", catalogKey)
	}

	if subKey != "" {
		if !entry.IsComposite() {
			return Entry{}, "", ErrSubFieldNotFound().
				WithDetail("key", catalogKey).
				WithDetail("reason", "entry has no sub-fields")
		}
		if _, ok := entry.Field(subKey); !ok {
			return Entry{}, "", ErrSubFieldNotFound().WithDetail("key", catalogKey)
		}
	}

	return entry, subKey, nil
}

// ListFor returns the entries usable on a node kind, in registration order
func (r *Registry) ListFor(kind NodeKind) []Entry {
	result := make([]Entry, 0)
	for _, key := range r.order {
		if e := r.entries[key]; e.AllowedOn(kind) {
			result = append(result, e)
		}
	}
	return result
}

// All returns every entry in registration order
func (r *Registry) All() []Entry {
	result := make([]Entry, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.entries[key])
	}
	return result
}

// ============================================================================
// Invariants
// ============================================================================

func checkEntry(e Entry) error {
	invalid := func(reason string, args ...any) error {
		return ErrInvalidEntry().
			WithDetail("key", e.Key).
			WithDetail("reason", fmt.Sprintf(reason, args...))
	}

	if e.Key == "" {
		return invalid("key is required")
	}
	if strings.Contains(e.Key, ".") {
		return invalid("key must not contain '.'")
	}
	if e.Shape == nil {
		return invalid("shape is required")
	}
	if len(e.EnabledKinds) == 0 {
		return invalid("at least one node kind is required")
	}
	for _, k := range e.EnabledKinds {
		if !k.IsValid() {
			return invalid("unknown node kind %q", k)
		}
	}

	if e.AllowedOn(KindCondition) && !e.HasOperators() {
		return invalid("condition blocks need a field with operators")
	}
	if e.AllowedOn(KindTrigger) && len(e.Fields()) == 0 && e.EventMatch == "" {
		return invalid("field-less trigger blocks need an event match")
	}
	if e.IsComposite() && len(e.Fields()) == 0 {
		return invalid("composite blocks need sub-fields")
	}

	seen := make(map[string]bool)
	for _, f := range e.Fields() {
		if f.Key == "" {
			return invalid("field key is required")
		}
		if seen[f.Key] {
			return invalid("duplicate field %q", f.Key)
		}
		seen[f.Key] = true

		switch f.Format {
		case FormatStatic:
			if len(f.StaticOptions) == 0 {
				return invalid("static field %q has no options", f.Key)
			}
		case FormatCallingAPI:
			if f.RemoteSource == "" {
				return invalid("calling_api field %q has no remote source", f.Key)
			}
		case FormatInput, FormatAuto:
		default:
			return invalid("field %q has unknown format %q", f.Key, f.Format)
		}

		for _, op := range f.Operators {
			if !op.IsValid() {
				return invalid("field %q has unknown operator %q", f.Key, op)
			}
			if op == OpContains && !f.ValueType.IsFreeText() {
				return invalid("contains is only allowed on text fields (%q)", f.Key)
			}
			if (op == OpGte || op == OpLte) && !f.ValueType.IsOrdered() {
				return invalid("ordered operators need a number or date field (%q)", f.Key)
			}
		}
		if f.Comparable() && f.Attribute == "" {
			return invalid("comparable field %q has no event attribute", f.Key)
		}
	}

	return nil
}
