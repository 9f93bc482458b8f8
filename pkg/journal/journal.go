// Package journal records the reversible side effects of an install so a
// later uninstall can remove them.
package journal

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the category of a recorded side effect.
type Kind string

const (
	// File is a file path created by the installer.
	File Kind = "file"

	// Directory is a directory path created by the installer.
	Directory Kind = "directory"

	// RegistryKey is a registry key path created by the installer.
	RegistryKey Kind = "registry_key"

	// RegistryValue is a registry value (key path + value name) set by the installer.
	RegistryValue Kind = "registry_value"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{File, Directory, RegistryKey, RegistryValue}

// ParseKind converts a kind name into a Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate checks that the kind is known.
func (k Kind) Validate() error {
	switch k {
	case File, Directory, RegistryKey, RegistryValue:
		return nil
	default:
		return fmt.Errorf("invalid journal entry kind: %s", k)
	}
}

// Journal is the uninstall operations record shared by every step of a run.
// Each kind is a set: recording the same value twice has no effect, and
// ReadEntries makes no ordering promise.
type Journal interface {
	// AddEntry records value under kind.
	AddEntry(kind Kind, value string)

	// ReadEntries returns every value recorded under kind.
	ReadEntries(kind Kind) []string

	// Flush persists the current state.
	Flush() error
}

// entrySets holds the four unique sets.
type entrySets map[Kind]map[string]struct{}

func newEntrySets() entrySets {
	sets := make(entrySets, len(Kinds))
	for _, k := range Kinds {
		sets[k] = make(map[string]struct{})
	}
	return sets
}

func (s entrySets) add(kind Kind, value string) bool {
	set, ok := s[kind]
	if !ok {
		return false
	}
	if _, exists := set[value]; exists {
		return false
	}
	set[value] = struct{}{}
	return true
}

func (s entrySets) sorted(kind Kind) []string {
	set := s[kind]
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (s entrySets) len() int {
	n := 0
	for _, set := range s {
		n += len(set)
	}
	return n
}
