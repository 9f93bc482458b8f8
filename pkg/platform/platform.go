// Package platform describes the machine the installer runs on.
package platform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// OS identifies an operating system family.
type OS string

const (
	// Windows is Microsoft Windows.
	Windows OS = "windows"

	// Linux is any Linux distribution.
	Linux OS = "linux"

	// MacOS is Apple macOS.
	MacOS OS = "darwin"

	// Any matches every OS. It is only meaningful in authored definitions and
	// must be narrowed to a concrete OS before execution.
	Any OS = "any"
)

// ParseOS converts a name such as "linux", "osx" or "win" into an OS.
func ParseOS(name string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows", "win":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "darwin", "macos", "osx", "mac":
		return MacOS, nil
	case "any", "":
		return Any, nil
	default:
		return "", fmt.Errorf("unknown operating system: %q", name)
	}
}

// Validate checks that the OS is a known value.
func (o OS) Validate() error {
	switch o {
	case Windows, Linux, MacOS, Any:
		return nil
	default:
		return fmt.Errorf("invalid operating system: %s", o)
	}
}

// IsConcrete reports whether o names a single operating system.
func (o OS) IsConcrete() bool {
	return o == Windows || o == Linux || o == MacOS
}

// Info describes the current machine. It is passed explicitly to every
// component that needs it.
type Info struct {
	// OS is the operating system family.
	OS OS `json:"os"`

	// Arch is the CPU architecture using Go naming (amd64, arm64, ...).
	Arch string `json:"arch"`

	// Distribution is the Linux distribution ID from os-release (ubuntu, fedora, ...).
	Distribution string `json:"distribution,omitempty"`

	// Version is the OS or distribution version.
	Version string `json:"version,omitempty"`

	// Elevated is true when the process runs as root or as an elevated
	// Windows administrator.
	Elevated bool `json:"elevated"`
}

// String renders the platform for logs.
func (i Info) String() string {
	parts := []string{string(i.OS), i.Arch}
	if i.Distribution != "" {
		parts = append(parts, i.Distribution)
	}
	if i.Version != "" {
		parts = append(parts, i.Version)
	}
	return strings.Join(parts, "/")
}

// Detect inspects the running machine.
func Detect() (Info, error) {
	info := Info{
		OS:       OS(runtime.GOOS),
		Arch:     runtime.GOARCH,
		Elevated: isElevated(),
	}

	if info.OS == Linux {
		f, err := os.Open("/etc/os-release")
		if err != nil {
			// Minimal containers ship without os-release; the distribution
			// simply stays unknown.
			if os.IsNotExist(err) {
				return info, nil
			}
			return info, fmt.Errorf("failed to read os-release: %w", err)
		}
		defer f.Close()

		release := ParseOSRelease(f)
		info.Distribution = release["ID"]
		info.Version = release["VERSION_ID"]
	}

	return info, nil
}

// ParseOSRelease parses the KEY=value format of /etc/os-release.
func ParseOSRelease(r io.Reader) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[key] = strings.Trim(value, `"'`)
	}
	return values
}

// Variables returns the built-in platform variables, the lowest-priority
// layer of every workflow's variable map.
func (i Info) Variables() map[string]string {
	vars := map[string]string{
		"Platform.OS":            string(i.OS),
		"Platform.Arch":          i.Arch,
		"Platform.Distribution":  i.Distribution,
		"Platform.Version":       i.Version,
		"Platform.TempDirectory": os.TempDir(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		vars["Platform.HomeDirectory"] = home
	}
	if wd, err := os.Getwd(); err == nil {
		vars["Platform.WorkingDirectory"] = wd
	}
	return vars
}
