package dependencies

import (
	"fmt"
	"strings"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
)

// PackageManager describes how to drive one OS package manager.
type PackageManager struct {
	// Name identifies the manager (apt-get, dnf, winget, ...).
	Name string

	// Command is the executable.
	Command string

	// InstallArgs are the arguments of a non-interactive install. "{package}"
	// expands to the package name.
	InstallArgs []string
}

// InstallCommand builds the install command for pkg.
func (m PackageManager) InstallCommand(pkg string) (local.Command, error) {
	if pkg == "" {
		return local.Command{}, fmt.Errorf("package name is required")
	}

	args := append([]string(nil), m.InstallArgs...)
	resolver := variables.NewResolver(variables.NewMap(map[string]string{"package": pkg}))
	if err := resolver.Slice(args); err != nil {
		return local.Command{}, err
	}
	return local.Command{Name: m.Command, Args: args}, nil
}

var (
	aptGet = PackageManager{Name: "apt-get", Command: "apt-get", InstallArgs: []string{"install", "-y", "{package}"}}
	dnf    = PackageManager{Name: "dnf", Command: "dnf", InstallArgs: []string{"install", "-y", "{package}"}}
	yum    = PackageManager{Name: "yum", Command: "yum", InstallArgs: []string{"install", "-y", "{package}"}}
	zypper = PackageManager{Name: "zypper", Command: "zypper", InstallArgs: []string{"--non-interactive", "install", "{package}"}}
	apk    = PackageManager{Name: "apk", Command: "apk", InstallArgs: []string{"add", "--no-cache", "{package}"}}
	brew   = PackageManager{Name: "brew", Command: "brew", InstallArgs: []string{"install", "{package}"}}
	winget = PackageManager{
		Name:    "winget",
		Command: "winget",
		InstallArgs: []string{
			"install", "--id", "{package}", "--exact", "--silent",
			"--accept-package-agreements", "--accept-source-agreements",
		},
	}
)

// distributionManagers maps os-release IDs to their package manager.
var distributionManagers = map[string]PackageManager{
	"ubuntu":              aptGet,
	"debian":              aptGet,
	"linuxmint":           aptGet,
	"pop":                 aptGet,
	"raspbian":            aptGet,
	"fedora":              dnf,
	"rhel":                dnf,
	"centos":              dnf,
	"rocky":               dnf,
	"almalinux":           dnf,
	"ol":                  dnf,
	"amzn":                yum,
	"opensuse-leap":       zypper,
	"opensuse-tumbleweed": zypper,
	"sles":                zypper,
	"alpine":              apk,
}

// PackageManagerFor returns the package manager of p. Unknown distributions
// are an unsupported-platform error.
func PackageManagerFor(p platform.Info) (PackageManager, error) {
	switch p.OS {
	case platform.Windows:
		return winget, nil
	case platform.MacOS:
		return brew, nil
	case platform.Linux:
		if m, ok := distributionManagers[strings.ToLower(p.Distribution)]; ok {
			return m, nil
		}
		return PackageManager{}, errdefs.NewUnsupportedPlatformError(
			fmt.Sprintf("no package manager known for distribution %q", p.Distribution), nil,
		).WithDetail("platform", p.String())
	default:
		return PackageManager{}, errdefs.NewUnsupportedPlatformError(
			fmt.Sprintf("no package manager known for %s", p.OS), errdefs.ErrUnsupportedOS,
		)
	}
}
