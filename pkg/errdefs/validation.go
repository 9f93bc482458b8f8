package errdefs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Failure is a single validation problem.
type Failure struct {
	// Source identifies the step or configuration block that failed.
	Source string `json:"source"`

	// Field is the offending field, if known.
	Field string `json:"field,omitempty"`

	// Message describes the problem.
	Message string `json:"message"`
}

func (f Failure) String() string {
	if f.Field != "" {
		return fmt.Sprintf("%s: %s: %s", f.Source, f.Field, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Source, f.Message)
}

// ValidationReport collects every failure found while validating a workflow.
type ValidationReport struct {
	Failures []Failure `json:"failures"`
}

// Add appends a failure.
func (r *ValidationReport) Add(source, field, message string) {
	r.Failures = append(r.Failures, Failure{Source: source, Field: field, Message: message})
}

// AddError appends the failures described by err. validator.ValidationErrors
// are expanded into one failure per field.
func (r *ValidationReport) AddError(source string, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			r.Add(source, fe.Namespace(), describeFieldError(fe))
		}
		return
	}
	r.Add(source, "", err.Error())
}

// HasFailures reports whether any failure was recorded.
func (r *ValidationReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// Error renders the report as a single error message.
func (r *ValidationReport) Error() string {
	lines := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		lines = append(lines, "  - "+f.String())
	}
	return fmt.Sprintf("%d validation failure(s):\n%s", len(r.Failures), strings.Join(lines, "\n"))
}

// Err returns nil when the report is empty, otherwise a validation InstallError
// wrapping the report.
func (r *ValidationReport) Err() error {
	if !r.HasFailures() {
		return nil
	}
	return newError(KindValidation, "workflow validation failed", r).
		WithDetail("failures", len(r.Failures))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", fe.Param())
	case "excluded_with":
		return fmt.Sprintf("must not be set together with %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "hexadecimal", "len":
		return fmt.Sprintf("failed %q check", fe.Tag())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %q=%s check", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
