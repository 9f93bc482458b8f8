// Package dependencies models the external products a workflow needs and the
// strategies that can install them on the current platform.
//
// Dependencies form a flat list. Each one is checked and acquired on its own;
// there is no transitive resolution.
package dependencies

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
)

var validate = validator.New()

// Dependency is a product with a requested version range.
type Dependency interface {
	// Name is the product name.
	Name() string

	// Range is the requested version range as written.
	Range() string

	// Constraints is the parsed form of Range.
	Constraints() *semver.Constraints

	// Methods lists the acquisition strategies that apply to p, in
	// preference order.
	Methods(p platform.Info) ([]AcquisitionMethod, error)

	// IsAlreadyInstalled reports whether a satisfying installation exists.
	IsAlreadyInstalled(ctx context.Context, runner local.Runner) (bool, error)
}

// Services are the collaborators an acquisition may use.
type Services struct {
	Platform   platform.Info
	Runner     local.Runner
	Downloader local.Downloader
}

// TrySatisfyDependency returns the first method whose offered version
// satisfies the dependency's range.
func TrySatisfyDependency(dep Dependency, methods []AcquisitionMethod) (AcquisitionMethod, bool) {
	c := dep.Constraints()
	for _, m := range methods {
		if m.Satisfies(c) {
			return m, true
		}
	}
	return nil, false
}

// ParseRange parses a version range such as ">=5.0.0" or "8.0.x".
func ParseRange(r string) (*semver.Constraints, error) {
	if r == "" {
		return nil, fmt.Errorf("version range is required")
	}
	c, err := semver.NewConstraint(r)
	if err != nil {
		return nil, fmt.Errorf("invalid version range %q: %w", r, err)
	}
	return c, nil
}

// HighestSatisfying returns the highest candidate version that satisfies c.
// Candidates that do not parse are ignored.
func HighestSatisfying(c *semver.Constraints, candidates []string) (string, bool) {
	type candidate struct {
		raw string
		v   *semver.Version
	}

	var matching []candidate
	for _, raw := range candidates {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if c.Check(v) {
			matching = append(matching, candidate{raw: raw, v: v})
		}
	}
	if len(matching) == 0 {
		return "", false
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].v.GreaterThan(matching[j].v)
	})
	return matching[0].raw, true
}

// offeredSatisfies checks an offered version against c. An unparsable offer
// never satisfies anything.
func offeredSatisfies(offered string, c *semver.Constraints) bool {
	if c == nil {
		return false
	}
	v, err := semver.NewVersion(offered)
	if err != nil {
		return false
	}
	return c.Check(v)
}
