package dependencies

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
)

// defaultVersionPattern finds the first dotted version in command output.
var defaultVersionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// ToolSource is one declared way of obtaining a tool.
type ToolSource struct {
	// OS the source applies to.
	OS platform.OS `yaml:"os" validate:"required,oneof=windows linux darwin"`

	// Arch restricts the source to one architecture. Empty matches all.
	Arch string `yaml:"arch"`

	// Package installs through the platform package manager instead of a download.
	Package string `yaml:"package"`

	// Download is used when Package is empty.
	Download *DownloadInstall `yaml:"download" validate:"required_without=Package"`

	// Version is what the package manager would install. Downloads carry their own.
	Version string `yaml:"version" validate:"required_with=Package"`
}

// ToolDependency is a command-line tool whose version is read from its
// own output.
type ToolDependency struct {
	product      string
	versionRange string
	command      string
	versionArgs  []string
	pattern      *regexp.Regexp
	sources      []ToolSource
	constraints  *semver.Constraints
}

// ToolOption configures a ToolDependency.
type ToolOption func(*ToolDependency)

// WithVersionArgs sets the arguments that make the tool print its version.
func WithVersionArgs(args ...string) ToolOption {
	return func(t *ToolDependency) { t.versionArgs = args }
}

// WithVersionPattern sets the expression whose first group is the version.
func WithVersionPattern(re *regexp.Regexp) ToolOption {
	return func(t *ToolDependency) { t.pattern = re }
}

// WithSources declares acquisition sources in preference order.
func WithSources(sources ...ToolSource) ToolOption {
	return func(t *ToolDependency) { t.sources = append(t.sources, sources...) }
}

// NewToolDependency creates a tool dependency checked by running command.
func NewToolDependency(product, versionRange, command string, opts ...ToolOption) (*ToolDependency, error) {
	if product == "" {
		return nil, fmt.Errorf("dependency name is required")
	}
	if command == "" {
		return nil, fmt.Errorf("dependency %s: command is required", product)
	}
	c, err := ParseRange(versionRange)
	if err != nil {
		return nil, err
	}

	t := &ToolDependency{
		product:      product,
		versionRange: versionRange,
		command:      command,
		versionArgs:  []string{"--version"},
		pattern:      defaultVersionPattern,
		constraints:  c,
	}
	for _, opt := range opts {
		opt(t)
	}
	for i := range t.sources {
		if err := validate.Struct(&t.sources[i]); err != nil {
			return nil, fmt.Errorf("invalid source %d for %s: %w", i, product, err)
		}
	}
	return t, nil
}

// Name implements Dependency.
func (t *ToolDependency) Name() string { return t.product }

// Range implements Dependency.
func (t *ToolDependency) Range() string { return t.versionRange }

// Constraints implements Dependency.
func (t *ToolDependency) Constraints() *semver.Constraints { return t.constraints }

// Methods implements Dependency.
func (t *ToolDependency) Methods(p platform.Info) ([]AcquisitionMethod, error) {
	var methods []AcquisitionMethod
	for i := range t.sources {
		src := &t.sources[i]
		if src.OS != p.OS || (src.Arch != "" && src.Arch != p.Arch) {
			continue
		}

		if src.Package == "" {
			methods = append(methods, src.Download)
			continue
		}

		manager, err := PackageManagerFor(p)
		if err != nil {
			return nil, err
		}
		methods = append(methods, &PackageManagerInstall{Manager: manager, Package: src.Package, Version: src.Version})
	}

	if len(methods) == 0 && len(t.sources) > 0 {
		return nil, errdefs.NewUnsupportedPlatformError(
			fmt.Sprintf("%s declares no source for %s", t.product, p), nil)
	}
	return methods, nil
}

// IsAlreadyInstalled implements Dependency.
func (t *ToolDependency) IsAlreadyInstalled(ctx context.Context, runner local.Runner) (bool, error) {
	res, err := runner.Run(ctx, local.Command{Name: t.command, Args: t.versionArgs})
	if err != nil {
		log.Debug().Err(err).Str("dependency", t.product).Msg("Version check failed, treating as not installed")
		return false, nil
	}

	m := t.pattern.FindStringSubmatch(res.Stdout + "\n" + res.Stderr)
	if len(m) < 2 {
		return false, nil
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return false, nil
	}
	return t.constraints.Check(v), nil
}
