package dependencies

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
)

// AcquisitionMethod is one way of installing a dependency.
type AcquisitionMethod interface {
	// Offers is the version the method would install.
	Offers() string

	// Satisfies reports whether Offers falls inside c.
	Satisfies(c *semver.Constraints) bool

	// Acquire performs the installation.
	Acquire(ctx context.Context, svc Services) error

	// Describe renders the method for logs.
	Describe() string
}

// DownloadInstall downloads an installer and runs it silently.
type DownloadInstall struct {
	// Version is the product version the installer delivers.
	Version string `yaml:"version" validate:"required"`

	// URL is where the installer is fetched from.
	URL string `yaml:"url" validate:"required,url"`

	// SHA256 is the expected digest of the installer.
	SHA256 string `yaml:"sha256" validate:"omitempty,hexadecimal,len=64"`

	// FileName overrides the cached file name.
	FileName string `yaml:"file_name"`

	// Installer is the program to run. Defaults to "{file}", the downloaded file.
	Installer string `yaml:"installer"`

	// Args are the silent-install arguments. "{file}" expands to the
	// downloaded file path.
	Args []string `yaml:"args"`
}

// Offers implements AcquisitionMethod.
func (d *DownloadInstall) Offers() string { return d.Version }

// Satisfies implements AcquisitionMethod.
func (d *DownloadInstall) Satisfies(c *semver.Constraints) bool {
	return offeredSatisfies(d.Version, c)
}

// Describe implements AcquisitionMethod.
func (d *DownloadInstall) Describe() string {
	return fmt.Sprintf("download %s from %s", d.Version, d.URL)
}

// Acquire implements AcquisitionMethod.
func (d *DownloadInstall) Acquire(ctx context.Context, svc Services) error {
	if svc.Downloader == nil || svc.Runner == nil {
		return errdefs.NewDependencyError("download install requires a downloader and a runner", nil)
	}

	path, err := svc.Downloader.Download(ctx, local.Request{
		URL:      d.URL,
		FileName: d.FileName,
		SHA256:   d.SHA256,
	})
	if err != nil {
		return errdefs.NewDependencyError("failed to download installer", err).
			WithDetail("url", d.URL)
	}

	resolver := variables.NewResolver(variables.NewMap(map[string]string{"file": path}))

	installer := d.Installer
	if installer == "" {
		installer = "{file}"
	}
	args := append([]string(nil), d.Args...)
	if err := resolver.Fields(&installer); err != nil {
		return err
	}
	if err := resolver.Slice(args); err != nil {
		return err
	}

	cmd := local.Command{Name: installer, Args: args}
	log.Info().Str("command", cmd.String()).Msg("Running installer")

	if _, err := svc.Runner.Run(ctx, cmd); err != nil {
		return errdefs.NewDependencyError("installer failed", err).
			WithDetail("installer", installer)
	}
	return nil
}

// PackageManagerInstall installs a package through the OS package manager.
type PackageManagerInstall struct {
	Manager PackageManager
	Package string
	Version string
}

// Offers implements AcquisitionMethod.
func (p *PackageManagerInstall) Offers() string { return p.Version }

// Satisfies implements AcquisitionMethod.
func (p *PackageManagerInstall) Satisfies(c *semver.Constraints) bool {
	return offeredSatisfies(p.Version, c)
}

// Describe implements AcquisitionMethod.
func (p *PackageManagerInstall) Describe() string {
	return fmt.Sprintf("%s install %s (%s)", p.Manager.Name, p.Package, p.Version)
}

// Acquire implements AcquisitionMethod.
func (p *PackageManagerInstall) Acquire(ctx context.Context, svc Services) error {
	if svc.Runner == nil {
		return errdefs.NewDependencyError("package manager install requires a runner", nil)
	}

	cmd, err := p.Manager.InstallCommand(p.Package)
	if err != nil {
		return err
	}
	log.Info().Str("command", cmd.String()).Msg("Installing package")

	if _, err := svc.Runner.Run(ctx, cmd); err != nil {
		return errdefs.NewDependencyError("package installation failed", err).
			WithDetail("package", p.Package).
			WithDetail("manager", p.Manager.Name)
	}
	return nil
}
