package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(NotFound, "plan p-1 not found")
	if got := err.Error(); got != "NOT_FOUND: plan p-1 not found" {
		t.Errorf("got %q", got)
	}

	cause := stderrors.New("disk gone")
	wrapped := Wrap(InternalError, "save failed", cause)
	if got := wrapped.Error(); got != "INTERNAL_ERROR: save failed: disk gone" {
		t.Errorf("got %q", got)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(IllegalTransition, "cannot go from %s to %s", "draft", "completed")
	if err.Message != "cannot go from draft to completed" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(ProviderUnavailable, "call failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is does not see the cause")
	}
}

func TestWithDetail(t *testing.T) {
	err := New(ValidationFailed, "plan invalid").
		WithDetail("errors", 2).
		WithDetail("plan", "p-1")

	if err.Details["errors"] != 2 || err.Details["plan"] != "p-1" {
		t.Errorf("details = %v", err.Details)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(FileMissing, "gone")); got != FileMissing {
		t.Errorf("got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != InternalError {
		t.Errorf("plain error code = %s, want INTERNAL_ERROR", got)
	}

	// The code survives fmt.Errorf wrapping.
	wrapped := fmt.Errorf("outer: %w", New(RollbackIncomplete, "2 failed"))
	if got := CodeOf(wrapped); got != RollbackIncomplete {
		t.Errorf("wrapped code = %s", got)
	}
}

func TestHasCode(t *testing.T) {
	err := New(FileExists, "already there")
	if !HasCode(err, FileExists) {
		t.Error("HasCode missed matching code")
	}
	if HasCode(err, FileMissing) {
		t.Error("HasCode matched wrong code")
	}
	if HasCode(nil, FileExists) {
		t.Error("HasCode(nil) = true")
	}
}
