// Package errdefs defines the classified errors produced by the installer engine.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an installer error. Every kind is fatal to the run; the
// classification exists for reporting and for callers that branch on it.
type Kind string

const (
	// KindValidation is an aggregated report of invalid task or configuration blocks.
	KindValidation Kind = "validation"

	// KindUnsupportedPlatform means no acquisition strategy or package manager
	// mapping applies to the current OS, distribution or architecture.
	KindUnsupportedPlatform Kind = "unsupported_platform"

	// KindUnresolvedVariable means a placeholder had no matching source value.
	KindUnresolvedVariable Kind = "unresolved_variable"

	// KindDependency means a dependency could not be satisfied or acquired.
	KindDependency Kind = "dependency"

	// KindTaskExecution means a task returned an error.
	KindTaskExecution Kind = "task_execution"

	// KindJournal means the uninstall journal could not be read or written.
	KindJournal Kind = "journal"

	// KindConfiguration means engine settings or a workflow definition are malformed.
	KindConfiguration Kind = "configuration"

	// KindPolicy means an admission policy rejected the workflow.
	KindPolicy Kind = "policy"
)

// Sentinel errors for errors.Is checks.
var (
	ErrNoAcquisitionMethod   = errors.New("no acquisition method satisfies the requested version range")
	ErrUnknownJournalVersion = errors.New("unknown journal format version")
	ErrNoTaskForKind         = errors.New("no task registered for configuration kind")
	ErrUnsupportedOS         = errors.New("operation not supported on this operating system")
)

// InstallError is a classified error with run context.
type InstallError struct {
	// Kind is the error classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Step is the name of the step being processed, if any.
	Step string `json:"step,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Step != "" {
		fmt.Fprintf(&b, " (step=%s)", e.Step)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an InstallError of the same kind.
func (e *InstallError) Is(target error) bool {
	t, ok := target.(*InstallError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithStep adds step context to an error.
func (e *InstallError) WithStep(step string) *InstallError {
	e.Step = step
	return e
}

// WithDetail adds a detail field to the error context.
func (e *InstallError) WithDetail(key string, value interface{}) *InstallError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, message string, err error) *InstallError {
	return &InstallError{Kind: kind, Message: message, Err: err}
}

// NewUnsupportedPlatformError creates an unsupported-platform error.
func NewUnsupportedPlatformError(message string, err error) *InstallError {
	return newError(KindUnsupportedPlatform, message, err)
}

// NewUnresolvedVariableError creates an error for a placeholder with no source value.
func NewUnresolvedVariableError(name string) *InstallError {
	return newError(KindUnresolvedVariable, fmt.Sprintf("variable {%s} is not defined", name), nil).
		WithDetail("variable", name)
}

// NewDependencyError creates a dependency acquisition error.
func NewDependencyError(message string, err error) *InstallError {
	return newError(KindDependency, message, err)
}

// NewTaskExecutionError creates a task execution error.
func NewTaskExecutionError(message string, err error) *InstallError {
	return newError(KindTaskExecution, message, err)
}

// NewJournalError creates a journal persistence error.
func NewJournalError(message string, err error) *InstallError {
	return newError(KindJournal, message, err)
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, err error) *InstallError {
	return newError(KindConfiguration, message, err)
}

// NewPolicyError creates a policy rejection error.
func NewPolicyError(message string, err error) *InstallError {
	return newError(KindPolicy, message, err)
}

func isKind(err error, kind Kind) bool {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsValidation returns true if the error is a validation failure.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsUnsupportedPlatform returns true if the error is an unsupported-platform error.
func IsUnsupportedPlatform(err error) bool { return isKind(err, KindUnsupportedPlatform) }

// IsUnresolvedVariable returns true if the error is an unresolved-variable error.
func IsUnresolvedVariable(err error) bool { return isKind(err, KindUnresolvedVariable) }

// IsDependency returns true if the error is a dependency acquisition error.
func IsDependency(err error) bool { return isKind(err, KindDependency) }

// IsTaskExecution returns true if the error is a task execution error.
func IsTaskExecution(err error) bool { return isKind(err, KindTaskExecution) }

// IsJournal returns true if the error is a journal error.
func IsJournal(err error) bool { return isKind(err, KindJournal) }

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsPolicy returns true if an admission policy rejected the workflow.
func IsPolicy(err error) bool { return isKind(err, KindPolicy) }

// KindOf returns the kind of a classified error, or the empty string.
func KindOf(err error) Kind {
	var e *InstallError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
