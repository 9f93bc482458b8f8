// Package variables implements placeholder substitution across layered
// name/value sources.
package variables

import (
	"os"
	"sort"
	"strings"
)

// Lookup is a source of variable values.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) (string, bool)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(name string) (string, bool) {
	return f(name)
}

type entry struct {
	name  string
	value string
}

// Map is a string map with case-insensitive keys. The casing of the most
// recent Set is kept for Keys. The zero value is ready to use.
type Map struct {
	entries map[string]entry
}

// NewMap creates a map populated from values.
func NewMap(values map[string]string) *Map {
	m := &Map{}
	for k, v := range values {
		m.Set(k, v)
	}
	return m
}

// Set stores value under name, replacing any key that differs only in case.
func (m *Map) Set(name, value string) {
	if m.entries == nil {
		m.entries = make(map[string]entry)
	}
	m.entries[strings.ToLower(name)] = entry{name: name, value: value}
}

// Get returns the value stored under name.
func (m *Map) Get(name string) (string, bool) {
	if m == nil || m.entries == nil {
		return "", false
	}
	e, ok := m.entries[strings.ToLower(name)]
	return e.value, ok
}

// Lookup implements Lookup.
func (m *Map) Lookup(name string) (string, bool) {
	return m.Get(name)
}

// Merge copies every entry of other into m; entries of other win.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		m.Set(e.name, e.value)
	}
}

// MergeValues copies a plain map into m.
func (m *Map) MergeValues(values map[string]string) {
	for k, v := range values {
		m.Set(k, v)
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		keys = append(keys, e.name)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	c := &Map{}
	c.Merge(m)
	return c
}

// Values returns the entries as a plain map.
func (m *Map) Values() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for _, e := range m.entries {
		out[e.name] = e.value
	}
	return out
}

// Env returns a source backed by the process environment. Only variables
// named Env.<NAME> are answered, so workflow names never collide with the
// environment by accident.
func Env() Lookup {
	return LookupFunc(func(name string) (string, bool) {
		const prefix = "env."
		if len(name) <= len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			return "", false
		}
		return os.LookupEnv(name[len(prefix):])
	})
}

// Deferred returns a source that answers each of names with its own
// placeholder. Resolution is single-pass, so the placeholder survives and can
// be filled in later once the value exists.
func Deferred(names ...string) Lookup {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return LookupFunc(func(name string) (string, bool) {
		if _, ok := set[strings.ToLower(name)]; ok {
			return "{" + name + "}", true
		}
		return "", false
	})
}
