package policy

import (
	"fmt"
	"time"
)

// Severity is how serious a violation is.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the run.
	SeverityError Severity = "error"

	// SeverityCritical blocks the run and is reported first.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity rejects a workflow.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate rejects unknown severities.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	}
	return fmt.Errorf("unknown severity %q", s)
}

// Policy is one Rego module. Its deny set holds the violations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the policy source.
	Rego string `json:"rego"`

	// Severity applies to violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Step     string   `json:"step,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Step != "" {
		return string(v.Severity) + ": " + v.Message + " (policy=" + v.Policy + ", step=" + v.Step + ")"
	}
	return string(v.Severity) + ": " + v.Message + " (policy=" + v.Policy + ")"
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations are the blocking findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are findings that do not block.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies see as input.
type Input struct {
	Workflow WorkflowInput `json:"workflow"`
	Platform PlatformInput `json:"platform"`
	Tag      string        `json:"tag"`
	DryRun   bool          `json:"dry_run"`
}

// WorkflowInput describes the workflow as written, before substitution.
type WorkflowInput struct {
	Name           string                    `json:"name"`
	Variables      map[string]string         `json:"variables"`
	Steps          []StepInput               `json:"steps"`
	Dependencies   []DependencyInput         `json:"dependencies"`
	Configurations map[string]map[string]any `json:"configurations"`
}

// StepInput is a step selected for the run's platform and tag.
type StepInput struct {
	Stage  string         `json:"stage"`
	Job    string         `json:"job"`
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	OS     string         `json:"os"`
	Tags   []string       `json:"tags"`
	Config map[string]any `json:"config"`
}

// DependencyInput is a declared dependency.
type DependencyInput struct {
	Name  string `json:"name"`
	Range string `json:"range"`
}

// PlatformInput is the detected platform.
type PlatformInput struct {
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	Distribution string `json:"distribution,omitempty"`
	Version      string `json:"version,omitempty"`
	Elevated     bool   `json:"elevated"`
}
