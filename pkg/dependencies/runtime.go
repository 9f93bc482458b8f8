package dependencies

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
)

// Flavor selects which part of a runtime distribution is required.
type Flavor string

const (
	// FlavorRuntime is the base runtime.
	FlavorRuntime Flavor = "runtime"

	// FlavorASPNetCore is the web runtime.
	FlavorASPNetCore Flavor = "aspnetcore"

	// FlavorDesktop is the Windows desktop runtime.
	FlavorDesktop Flavor = "desktop"

	// FlavorSDK is the full SDK.
	FlavorSDK Flavor = "sdk"
)

// Validate checks that the flavor is known.
func (f Flavor) Validate() error {
	switch f {
	case FlavorRuntime, FlavorASPNetCore, FlavorDesktop, FlavorSDK:
		return nil
	default:
		return fmt.Errorf("invalid runtime flavor: %s", f)
	}
}

// component is the framework name reported by --list-runtimes.
func (f Flavor) component() string {
	switch f {
	case FlavorASPNetCore:
		return "Microsoft.AspNetCore.App"
	case FlavorDesktop:
		return "Microsoft.WindowsDesktop.App"
	default:
		return "Microsoft.NETCore.App"
	}
}

// SupportedLines are the major.minor lines distributions package.
var SupportedLines = []string{"3.1", "5.0", "6.0", "7.0", "8.0", "9.0"}

// DotnetCommand is the executable queried for installed runtimes.
var DotnetCommand = "dotnet"

// RuntimeDependency is a .NET runtime or SDK.
type RuntimeDependency struct {
	product      string
	versionRange string
	flavor       Flavor
	downloads    []PlatformDownload
	constraints  *semver.Constraints
}

// PlatformDownload is an installer published for one platform.
type PlatformDownload struct {
	// OS the installer runs on.
	OS platform.OS `yaml:"os" validate:"required,oneof=windows linux darwin"`

	// Arch the installer targets. Empty matches every architecture.
	Arch string `yaml:"arch"`

	DownloadInstall `yaml:",inline"`
}

// NewRuntimeDependency parses versionRange and returns an immutable dependency.
func NewRuntimeDependency(product, versionRange string, flavor Flavor, downloads ...PlatformDownload) (*RuntimeDependency, error) {
	if product == "" {
		return nil, fmt.Errorf("dependency name is required")
	}
	if err := flavor.Validate(); err != nil {
		return nil, err
	}
	c, err := ParseRange(versionRange)
	if err != nil {
		return nil, err
	}
	for i := range downloads {
		if err := validate.Struct(&downloads[i]); err != nil {
			return nil, fmt.Errorf("invalid download %d for %s: %w", i, product, err)
		}
	}

	return &RuntimeDependency{
		product:      product,
		versionRange: versionRange,
		flavor:       flavor,
		downloads:    append([]PlatformDownload(nil), downloads...),
		constraints:  c,
	}, nil
}

// Name implements Dependency.
func (d *RuntimeDependency) Name() string { return d.product }

// Range implements Dependency.
func (d *RuntimeDependency) Range() string { return d.versionRange }

// Constraints implements Dependency.
func (d *RuntimeDependency) Constraints() *semver.Constraints { return d.constraints }

// Flavor returns the requested flavor.
func (d *RuntimeDependency) Flavor() Flavor { return d.flavor }

// Methods implements Dependency. Published downloads for the platform come
// first, followed by the package manager when it carries the product.
func (d *RuntimeDependency) Methods(p platform.Info) ([]AcquisitionMethod, error) {
	if !p.OS.IsConcrete() {
		return nil, errdefs.NewUnsupportedPlatformError(
			fmt.Sprintf("%s cannot be acquired on %s", d.product, p), errdefs.ErrUnsupportedOS)
	}

	var methods []AcquisitionMethod
	for i := range d.downloads {
		dl := &d.downloads[i]
		if dl.OS != p.OS || (dl.Arch != "" && dl.Arch != p.Arch) {
			continue
		}
		methods = append(methods, &dl.DownloadInstall)
	}

	switch p.OS {
	case platform.Linux:
		manager, err := PackageManagerFor(p)
		if err != nil {
			if len(methods) > 0 {
				return methods, nil
			}
			return nil, err
		}
		name, version, ok := LinuxPackageName(d.constraints, d.flavor, manager)
		if ok {
			methods = append(methods, &PackageManagerInstall{Manager: manager, Package: name, Version: version})
		}
	case platform.Windows:
		if version, ok := HighestSatisfying(d.constraints, SupportedLines); ok {
			methods = append(methods, &PackageManagerInstall{
				Manager: winget,
				Package: wingetID(d.flavor, version),
				Version: version,
			})
		}
	}

	return methods, nil
}

// IsAlreadyInstalled implements Dependency. A missing dotnet executable means
// nothing is installed.
func (d *RuntimeDependency) IsAlreadyInstalled(ctx context.Context, runner local.Runner) (bool, error) {
	arg := "--list-runtimes"
	if d.flavor == FlavorSDK {
		arg = "--list-sdks"
	}

	res, err := runner.Run(ctx, local.Command{Name: DotnetCommand, Args: []string{arg}})
	if err != nil {
		var exitErr *local.ExitError
		if errors.As(err, &exitErr) {
			return false, errdefs.NewDependencyError("failed to list installed runtimes", err)
		}
		log.Debug().Err(err).Str("dependency", d.product).Msg("dotnet not available, treating as not installed")
		return false, nil
	}

	for _, inst := range ParseInstallations(res.Stdout, d.flavor) {
		v, err := semver.NewVersion(inst.Version)
		if err != nil {
			continue
		}
		if d.constraints.Check(v) {
			log.Debug().
				Str("dependency", d.product).
				Str("installed", inst.Version).
				Msg("Dependency already satisfied")
			return true, nil
		}
	}
	return false, nil
}

// Installation is one entry reported by the runtime listing.
type Installation struct {
	Component string
	Version   string
	Path      string
}

// ParseInstallations parses "dotnet --list-runtimes" or "--list-sdks"
// output and keeps the entries matching flavor. Runtime lines look like
// "Microsoft.NETCore.App 8.0.5 [/usr/share/dotnet/shared/Microsoft.NETCore.App]",
// SDK lines like "8.0.100 [/usr/share/dotnet/sdk]".
func ParseInstallations(output string, flavor Flavor) []Installation {
	var out []Installation
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var path string
		if i := strings.Index(line, "["); i >= 0 {
			path = strings.TrimSuffix(strings.TrimSpace(line[i+1:]), "]")
			line = strings.TrimSpace(line[:i])
		}
		fields := strings.Fields(line)

		if flavor == FlavorSDK {
			if len(fields) != 1 {
				continue
			}
			out = append(out, Installation{Component: "sdk", Version: fields[0], Path: path})
			continue
		}

		if len(fields) != 2 || fields[0] != flavor.component() {
			continue
		}
		out = append(out, Installation{Component: fields[0], Version: fields[1], Path: path})
	}
	return out
}

// LinuxPackageName picks the highest supported line satisfying c and
// formats the distribution package name for it.
func LinuxPackageName(c *semver.Constraints, flavor Flavor, manager PackageManager) (name, version string, ok bool) {
	if flavor == FlavorDesktop {
		return "", "", false
	}
	version, ok = HighestSatisfying(c, SupportedLines)
	if !ok {
		return "", "", false
	}

	if manager.Name == apk.Name {
		major, _, _ := strings.Cut(version, ".")
		switch flavor {
		case FlavorASPNetCore:
			return "aspnetcore" + major + "-runtime", version, true
		case FlavorSDK:
			return "dotnet" + major + "-sdk", version, true
		default:
			return "dotnet" + major + "-runtime", version, true
		}
	}

	switch flavor {
	case FlavorASPNetCore:
		return "aspnetcore-runtime-" + version, version, true
	case FlavorSDK:
		return "dotnet-sdk-" + version, version, true
	default:
		return "dotnet-runtime-" + version, version, true
	}
}

func wingetID(flavor Flavor, version string) string {
	major, _, _ := strings.Cut(version, ".")
	switch flavor {
	case FlavorASPNetCore:
		return "Microsoft.DotNet.AspNetCore." + major
	case FlavorDesktop:
		return "Microsoft.DotNet.DesktopRuntime." + major
	case FlavorSDK:
		return "Microsoft.DotNet.SDK." + major
	default:
		return "Microsoft.DotNet.Runtime." + major
	}
}
