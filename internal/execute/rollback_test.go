package execute

import (
	"context"
	"strings"
	"testing"

	"aide/internal/config"
	"aide/internal/errors"
	"aide/internal/plan"
)

func TestRollbackRestoresWorkingTree(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{StopOnError: true})
	f.write(t, "app/Models/User.php", userModel)
	f.write(t, "app/obsolete.php", "<?php // old\n")
	f.write(t, "old/Helper.php", "<?php // helper\n")

	p := approvedPlan(
		plan.FileOperation{
			Type: plan.OpCreate, Path: "app/Services/New.php",
			TemplateContent: strings.Repeat("<?php // new service\n", 5),
		},
		plan.FileOperation{
			Type: plan.OpModify, Path: "app/Models/User.php",
			Changes: []plan.PlannedChange{{
				Section: "fillable", ChangeType: plan.ChangeReplace,
				Before: "['name', 'email']", After: "['name', 'email', 'phone']",
			}},
		},
		plan.FileOperation{Type: plan.OpDelete, Path: "app/obsolete.php"},
		plan.FileOperation{Type: plan.OpMove, Path: "old/Helper.php", NewPath: "app/Support/Helper.php"},
	)

	ctx := context.Background()
	outcome, err := f.engine.Execute(ctx, p, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Status != plan.StatusCompleted {
		t.Fatalf("Status = %s (error %s)", outcome.Status, outcome.Error)
	}

	res, err := f.engine.Rollback(ctx, p)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("rollback incomplete: failed=%v", res.Failed)
	}
	if len(res.RolledBack) != 4 {
		t.Errorf("RolledBack = %v, want 4 entries", res.RolledBack)
	}

	// every file back to its pre-execution state, byte for byte
	if f.exists("app/Services/New.php") {
		t.Error("created file survived rollback")
	}
	if got := f.read(t, "app/Models/User.php"); got != userModel {
		t.Errorf("modified file not restored:\n%s", got)
	}
	if got := f.read(t, "app/obsolete.php"); got != "<?php // old\n" {
		t.Errorf("deleted file not restored: %q", got)
	}
	if got := f.read(t, "old/Helper.php"); got != "<?php // helper\n" {
		t.Errorf("moved file not restored: %q", got)
	}
	if f.exists("app/Support/Helper.php") {
		t.Error("move destination survived rollback")
	}
}

func TestRollbackReadsPersistedRecords(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{StopOnError: true})
	f.write(t, "a.php", "<?php // original\n")

	p := approvedPlan(plan.FileOperation{
		Type: plan.OpModify, Path: "a.php",
		Changes: []plan.PlannedChange{{
			Section: "x", ChangeType: plan.ChangeReplace,
			Before: "original", After: "changed",
		}},
	})

	ctx := context.Background()
	if _, err := f.engine.Execute(ctx, p, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// the session is gone after completion; rollback must work from the store
	res, err := f.engine.Rollback(ctx, p)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.RolledBack) != 1 {
		t.Fatalf("RolledBack = %v", res.RolledBack)
	}
	if got := f.read(t, "a.php"); got != "<?php // original\n" {
		t.Errorf("not restored: %q", got)
	}

	// rollback records are persisted too
	records, _ := f.store.ListExecutions(ctx, p.ID)
	if len(records) != 1 || records[0].Status != StatusRolledBack {
		t.Errorf("records = %+v", records)
	}
}

func TestRollbackSkipsUnappliedOperations(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{StopOnError: true})
	f.write(t, "present.php", "<?php\n")

	p := approvedPlan(
		plan.FileOperation{Type: plan.OpDelete, Path: "present.php"},
		plan.FileOperation{Type: plan.OpDelete, Path: "missing.php"},
		plan.FileOperation{Type: plan.OpDelete, Path: "unreached.php"},
	)

	ctx := context.Background()
	outcome, _ := f.engine.Execute(ctx, p, Options{})
	if outcome.Status != plan.StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}

	res, err := f.engine.Rollback(ctx, p)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.RolledBack) != 1 {
		t.Errorf("RolledBack = %v, want just present.php", res.RolledBack)
	}
	if len(res.Skipped) != 1 {
		t.Errorf("Skipped = %v, want just missing.php", res.Skipped)
	}
	if got := f.read(t, "present.php"); got != "<?php\n" {
		t.Errorf("not restored: %q", got)
	}
}

func TestRollbackTransitionsExecutingPlanToFailed(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{StopOnError: true})
	f.write(t, "gated.php", "<?php // original\n")

	p := approvedPlan(
		plan.FileOperation{
			Type: plan.OpModify, Path: "gated.php",
			Changes: []plan.PlannedChange{{
				Section: "x", ChangeType: plan.ChangeReplace,
				Before: "original", After: "changed",
			}},
		},
		plan.FileOperation{Type: plan.OpCreate, Path: "never.php", TemplateContent: strings.Repeat("<?php\n", 20)},
	)

	ctx := context.Background()
	outcome, err := f.engine.Execute(ctx, p, Options{ApproveEach: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// approve the first gate, then stop at the second
	outcome, err = f.engine.Continue(ctx, p.ID)
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if outcome.AwaitingPath != "never.php" {
		t.Fatalf("AwaitingPath = %q", outcome.AwaitingPath)
	}
	if p.Status != plan.StatusExecuting {
		t.Fatalf("plan status = %s mid-execution", p.Status)
	}

	res, err := f.engine.Rollback(ctx, p)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.RolledBack) != 1 {
		t.Errorf("RolledBack = %v", res.RolledBack)
	}
	if p.Status != plan.StatusFailed {
		t.Errorf("plan status = %s after rollback, want failed", p.Status)
	}
	if got := f.read(t, "gated.php"); got != "<?php // original\n" {
		t.Errorf("not restored: %q", got)
	}
}

func TestRollbackWithNoRecords(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{})
	p := plan.NewPlan("proj-1", "never ran")
	p.Status = plan.StatusCompleted

	res, err := f.engine.Rollback(context.Background(), p)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.RolledBack) != 0 || len(res.Failed) != 0 {
		t.Errorf("res = %+v, want empty", res)
	}
}

func TestRollbackIncompleteErrorCode(t *testing.T) {
	f := setupEngine(t, &fakeCompleter{}, config.ExecutionConfig{StopOnError: true})
	f.write(t, "a.php", "<?php // original\n")

	p := approvedPlan(plan.FileOperation{
		Type: plan.OpModify, Path: "a.php",
		Changes: []plan.PlannedChange{{
			Section: "x", ChangeType: plan.ChangeReplace,
			Before: "original", After: "changed",
		}},
	})

	ctx := context.Background()
	if _, err := f.engine.Execute(ctx, p, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// corrupt the record so the undo targets an unwritable path
	records, _ := f.store.ListExecutions(ctx, p.ID)
	records[0].Path = "a.php/impossible/child.php"
	f.store.records[records[0].ID].Path = records[0].Path

	_, err := f.engine.Rollback(ctx, p)
	if err == nil {
		t.Fatal("expected rollback error")
	}
	if !errors.HasCode(err, errors.RollbackIncomplete) {
		t.Errorf("expected ROLLBACK_INCOMPLETE, got %v", errors.CodeOf(err))
	}
}
