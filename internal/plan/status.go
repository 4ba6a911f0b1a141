package plan

import (
	"time"

	"aide/internal/errors"
)

// Status is the lifecycle state of a plan.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusExecuting     Status = "executing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// transitions is the authoritative adjacency table. Rejected, completed and
// failed are terminal.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusPendingReview},
	StatusPendingReview: {StatusApproved, StatusRejected, StatusDraft},
	StatusApproved:      {StatusExecuting},
	StatusExecuting:     {StatusCompleted, StatusFailed},
	StatusRejected:      {},
	StatusCompleted:     {},
	StatusFailed:        {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the plan to the target status, or returns an
// ILLEGAL_TRANSITION error leaving the plan untouched.
func (p *Plan) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return errors.Newf(errors.IllegalTransition,
			"plan %s cannot move from %s to %s", p.ID, p.Status, to).
			WithDetail("from", string(p.Status)).
			WithDetail("to", string(to))
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether no further transitions exist from the status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
