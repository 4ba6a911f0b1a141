package orchestrator

import (
	"context"

	"aide/internal/errors"
	"aide/internal/execute"
	"aide/internal/plan"
)

// ExecutePlan approves and runs a pending plan outside any conversation, for
// the CLI path. With force set, per-file gating is skipped regardless of the
// risk assessment.
func (o *Orchestrator) ExecutePlan(ctx context.Context, planID string, force bool) (execute.Outcome, error) {
	p, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return execute.Outcome{}, err
	}

	if p.Status == plan.StatusPendingReview {
		if err := p.Transition(plan.StatusApproved); err != nil {
			return execute.Outcome{}, err
		}
	}
	if p.Status != plan.StatusApproved {
		return execute.Outcome{}, errors.Newf(errors.IllegalTransition,
			"plan %s is %s, not executable", p.ID, p.Status)
	}

	validation := o.validator.Validate(p)
	if !validation.IsValid {
		return execute.Outcome{}, errors.New(errors.ValidationFailed,
			"plan no longer validates against the working tree").
			WithDetail("errors", validation.Errors)
	}

	opts := execute.Options{ApproveEach: !force && !plan.IsSafeForAutoExecution(p)}
	outcome, err := o.engine.Execute(ctx, p, opts)
	o.persistPlan(ctx, p)
	return outcome, err
}

// ContinuePlan resumes a plan paused at a per-file gate.
func (o *Orchestrator) ContinuePlan(ctx context.Context, planID string) (execute.Outcome, error) {
	return o.engine.Continue(ctx, planID)
}

// SkipCurrentFile skips the gated operation and resumes.
func (o *Orchestrator) SkipCurrentFile(ctx context.Context, planID string) (execute.Outcome, error) {
	return o.engine.SkipFile(ctx, planID)
}

// RollbackPlan undoes a plan's applied operations from persisted records.
func (o *Orchestrator) RollbackPlan(ctx context.Context, planID string) (execute.RollbackResult, error) {
	p, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return execute.RollbackResult{}, err
	}
	res, rbErr := o.engine.Rollback(ctx, p)
	o.persistPlan(ctx, p)
	return res, rbErr
}
