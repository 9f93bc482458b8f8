package variables

import (
	"regexp"
	"strings"

	"github.com/openfroyo/installer/pkg/errdefs"
)

// placeholderPattern matches either the "{{" escape or a {identifier}
// placeholder. Matching the escape first keeps "{{name}}" from being read as
// a placeholder.
var placeholderPattern = regexp.MustCompile(`\{\{|\{([\w.\-]+)\}`)

// Resolver substitutes placeholders using sources in priority order.
type Resolver struct {
	sources []Lookup
}

// NewResolver creates a resolver. Earlier sources take priority.
func NewResolver(sources ...Lookup) *Resolver {
	filtered := make([]Lookup, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &Resolver{sources: filtered}
}

// With returns a resolver that consults the given sources before r's own.
func (r *Resolver) With(sources ...Lookup) *Resolver {
	return NewResolver(append(sources, r.sources...)...)
}

// Lookup returns the first value for name across the sources.
func (r *Resolver) Lookup(name string) (string, bool) {
	for _, s := range r.sources {
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

// String replaces every placeholder in s. Substituted values are inserted as
// literal text and are not expanded again. A placeholder that no source
// defines is an unresolved-variable error.
func (r *Resolver) String(s string) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}

	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		// m[2] < 0 means the "{{" alternative matched.
		if m[2] < 0 {
			continue
		}
		name := s[m[2]:m[3]]
		value, ok := r.Lookup(name)
		if !ok {
			return "", errdefs.NewUnresolvedVariableError(name)
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// Fields resolves each string in place. The first unresolved placeholder
// stops resolution and is returned.
func (r *Resolver) Fields(fields ...*string) error {
	for _, f := range fields {
		if f == nil {
			continue
		}
		resolved, err := r.String(*f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

// Slice resolves every element of values in place.
func (r *Resolver) Slice(values []string) error {
	for i := range values {
		if err := r.Fields(&values[i]); err != nil {
			return err
		}
	}
	return nil
}
