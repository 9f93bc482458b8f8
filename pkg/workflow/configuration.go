package workflow

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/installer/pkg/variables"
)

var validate = validator.New()

// Configuration is a named, typed block of workflow-wide options.
type Configuration interface {
	// Name identifies the block (application, policy, ...).
	Name() string

	// Validate checks the block after substitution.
	Validate() error

	// Substitute resolves placeholders in place.
	Substitute(r *variables.Resolver) error

	// Variables are the values the block contributes to the variable map.
	Variables() map[string]string
}

// ApplicationInfo describes the product being installed.
type ApplicationInfo struct {
	DisplayName      string `yaml:"name" validate:"required"`
	Version          string `yaml:"version" validate:"required"`
	Publisher        string `yaml:"publisher"`
	Description      string `yaml:"description"`
	InstallDirectory string `yaml:"install_directory" validate:"required"`
	HelpURL          string `yaml:"help_url" validate:"omitempty,url"`
}

// Name implements Configuration.
func (a *ApplicationInfo) Name() string { return "application" }

// Validate implements Configuration.
func (a *ApplicationInfo) Validate() error {
	return validate.Struct(a)
}

// Substitute implements Configuration.
func (a *ApplicationInfo) Substitute(r *variables.Resolver) error {
	return r.Fields(&a.DisplayName, &a.Version, &a.Publisher, &a.Description, &a.InstallDirectory, &a.HelpURL)
}

// Variables implements Configuration.
func (a *ApplicationInfo) Variables() map[string]string {
	return map[string]string{
		"Application.Name":             a.DisplayName,
		"Application.Version":          a.Version,
		"Application.Publisher":        a.Publisher,
		"Application.InstallDirectory": a.InstallDirectory,
	}
}

// InstallScope is who an installation is for.
type InstallScope string

const (
	ScopeUser    InstallScope = "user"
	ScopeMachine InstallScope = "machine"
)

// InstallPolicy holds options that shape how a run behaves.
type InstallPolicy struct {
	// Scope selects a per-user or machine-wide installation.
	Scope InstallScope `yaml:"scope" validate:"required,oneof=user machine"`

	// JournalDirectory is where the uninstall journal lives.
	JournalDirectory string `yaml:"journal_directory" validate:"required"`

	// RequireAdministrator refuses to run without elevation.
	RequireAdministrator bool `yaml:"require_administrator"`

	// SkipDependencies disables dependency installation.
	SkipDependencies bool `yaml:"skip_dependencies"`
}

// Name implements Configuration.
func (p *InstallPolicy) Name() string { return "policy" }

// Validate implements Configuration.
func (p *InstallPolicy) Validate() error {
	return validate.Struct(p)
}

// Substitute implements Configuration.
func (p *InstallPolicy) Substitute(r *variables.Resolver) error {
	scope := string(p.Scope)
	if err := r.Fields(&scope, &p.JournalDirectory); err != nil {
		return err
	}
	p.Scope = InstallScope(scope)
	return nil
}

// Variables implements Configuration.
func (p *InstallPolicy) Variables() map[string]string {
	return map[string]string{
		"Install.Scope":                string(p.Scope),
		"Install.JournalDirectory":     p.JournalDirectory,
		"Install.RequireAdministrator": strconv.FormatBool(p.RequireAdministrator),
	}
}
