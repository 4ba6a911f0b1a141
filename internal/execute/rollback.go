package execute

import (
	"context"

	"aide/internal/errors"
	"aide/internal/events"
	"aide/internal/plan"
)

// RollbackResult aggregates the per-operation undo outcomes.
type RollbackResult struct {
	PlanID     string   `json:"planId"`
	RolledBack []string `json:"rolledBack"`
	Failed     []string `json:"failed,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Complete reports whether every undoable operation was undone.
func (r RollbackResult) Complete() bool {
	return len(r.Failed) == 0
}

// Rollback undoes a plan's completed operations in reverse execution order.
// It keeps going past individual failures so every undoable operation gets
// its chance; an incomplete result returns a ROLLBACK_INCOMPLETE error
// alongside it. An executing plan transitions to failed regardless of the
// rollback outcome.
func (e *Engine) Rollback(ctx context.Context, p *plan.Plan) (RollbackResult, error) {
	res := RollbackResult{PlanID: p.ID}
	events.Emit(e.emitter, events.RollbackStarted, p.ID, nil)

	executions, err := e.executionsFor(ctx, p.ID)
	if err != nil {
		return res, err
	}

	for i := len(executions) - 1; i >= 0; i-- {
		fe := &executions[i]
		if fe.Status != StatusCompleted {
			res.Skipped = append(res.Skipped, fe.Path)
			continue
		}
		if err := e.undo(fe); err != nil {
			res.Failed = append(res.Failed, fe.Path)
			e.logger.Error("Rollback of operation failed", map[string]interface{}{
				"plan":      p.ID,
				"path":      fe.Path,
				"operation": string(fe.Operation),
				"error":     err.Error(),
			})
			continue
		}
		fe.finish(StatusRolledBack)
		if e.store != nil {
			if saveErr := e.store.SaveExecution(ctx, fe); saveErr != nil {
				e.logger.Warn("Failed to persist rollback record", map[string]interface{}{
					"plan":  p.ID,
					"path":  fe.Path,
					"error": saveErr.Error(),
				})
			}
		}
		res.RolledBack = append(res.RolledBack, fe.Path)
	}

	e.dropSession(p.ID)
	if p.Status == plan.StatusExecuting {
		if err := p.Transition(plan.StatusFailed); err != nil {
			return res, err
		}
	}

	events.Emit(e.emitter, events.RollbackFinished, p.ID, map[string]interface{}{
		"rolledBack": len(res.RolledBack),
		"failed":     len(res.Failed),
	})

	if !res.Complete() {
		return res, errors.Newf(errors.RollbackIncomplete,
			"rollback of plan %s left %d operation(s) in place", p.ID, len(res.Failed)).
			WithDetail("failed", res.Failed)
	}
	return res, nil
}

// executionsFor prefers the live session's records, falling back to the
// persisted ones so completed or crashed plans remain rollbackable.
func (e *Engine) executionsFor(ctx context.Context, planID string) ([]FileExecution, error) {
	e.mu.Lock()
	s, live := e.sessions[planID]
	e.mu.Unlock()
	if live {
		executions := make([]FileExecution, len(s.executions))
		copy(executions, s.executions)
		return executions, nil
	}
	if e.store == nil {
		return nil, errors.Newf(errors.NotFound, "no execution records for plan %s", planID)
	}
	return e.store.ListExecutions(ctx, planID)
}

func (e *Engine) undo(fe *FileExecution) error {
	switch fe.Operation {
	case plan.OpCreate:
		return e.writer.Remove(fe.Path)
	case plan.OpModify, plan.OpDelete:
		return e.writer.Restore(fe.Path, fe.OriginalContent)
	case plan.OpRename, plan.OpMove:
		if err := e.writer.Remove(fe.NewPath); err != nil {
			return err
		}
		return e.writer.Restore(fe.Path, fe.OriginalContent)
	default:
		return errors.Newf(errors.InternalError, "cannot undo operation type %q", fe.Operation)
	}
}
