package errdefs

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestInstallError_Classification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"unsupported platform", NewUnsupportedPlatformError("no package manager", nil), IsUnsupportedPlatform},
		{"unresolved variable", NewUnresolvedVariableError("Install.Dir"), IsUnresolvedVariable},
		{"dependency", NewDependencyError("no method", ErrNoAcquisitionMethod), IsDependency},
		{"task execution", NewTaskExecutionError("script failed", nil), IsTaskExecution},
		{"journal", NewJournalError("write failed", nil), IsJournal},
		{"configuration", NewConfigurationError("bad yaml", nil), IsConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("classification failed for %v", tt.err)
			}

			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("classification lost through wrapping for %v", wrapped)
			}
		})
	}
}

func TestInstallError_UnwrapAndMessage(t *testing.T) {
	err := NewDependencyError("dotnet", ErrNoAcquisitionMethod).WithStep("deps")

	if !errors.Is(err, ErrNoAcquisitionMethod) {
		t.Error("expected sentinel to be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "step=deps") {
		t.Errorf("expected step in message, got %q", err.Error())
	}
	if KindOf(err) != KindDependency {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindDependency)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for unclassified error")
	}
}

func TestValidationReport(t *testing.T) {
	var report ValidationReport
	if report.Err() != nil {
		t.Fatal("empty report must not produce an error")
	}

	type sample struct {
		Name string `validate:"required"`
		Mode string `validate:"oneof=a b"`
	}
	report.AddError("step one", validator.New().Struct(sample{Mode: "c"}))
	report.Add("application", "Version", "is not a semantic version")

	if len(report.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d: %v", len(report.Failures), report.Failures)
	}

	err := report.Err()
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var got *ValidationReport
	if !errors.As(err, &got) || got != &report {
		t.Error("expected the report to be reachable with errors.As")
	}
	if !strings.Contains(err.Error(), "3 validation failure(s)") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
