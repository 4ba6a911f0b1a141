package plan

import (
	"testing"

	"aide/internal/errors"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusPendingReview, true},
		{StatusDraft, StatusApproved, false},
		{StatusDraft, StatusExecuting, false},
		{StatusPendingReview, StatusApproved, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusDraft, true},
		{StatusPendingReview, StatusExecuting, false},
		{StatusApproved, StatusExecuting, true},
		{StatusApproved, StatusCompleted, false},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusExecuting, StatusApproved, false},
		{StatusRejected, StatusDraft, false},
		{StatusCompleted, StatusExecuting, false},
		{StatusFailed, StatusExecuting, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	p := NewPlan("proj-1", "test")

	if err := p.Transition(StatusExecuting); err == nil {
		t.Fatal("expected error for draft -> executing")
	} else if !errors.HasCode(err, errors.IllegalTransition) {
		t.Errorf("expected ILLEGAL_TRANSITION, got %v", errors.CodeOf(err))
	}

	// plan must be untouched after a refused transition
	if p.Status != StatusDraft {
		t.Errorf("status changed to %s after refused transition", p.Status)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	p := NewPlan("proj-1", "test")
	before := p.UpdatedAt

	for _, next := range []Status{StatusPendingReview, StatusApproved, StatusExecuting, StatusCompleted} {
		if err := p.Transition(next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
	if p.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", p.Status)
	}
	if !p.UpdatedAt.After(before) && !p.UpdatedAt.Equal(before) {
		t.Error("UpdatedAt went backwards")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCompleted, StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusPendingReview, StatusApproved, StatusExecuting} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestIsMutable(t *testing.T) {
	p := NewPlan("proj-1", "test")
	if !p.IsMutable() {
		t.Error("draft plan should be mutable")
	}
	p.Status = StatusPendingReview
	if !p.IsMutable() {
		t.Error("pending review plan should be mutable")
	}
	p.Status = StatusApproved
	if p.IsMutable() {
		t.Error("approved plan should not be mutable")
	}
}
