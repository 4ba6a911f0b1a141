package plan

import "testing"

func TestAssessRiskDefaultsLow(t *testing.T) {
	p := NewPlan("proj-1", "small change")
	p.FileOperations = []FileOperation{
		{Type: OpModify, Path: "a.php", Changes: []PlannedChange{{Section: "x", ChangeType: ChangeAdd, After: "y"}}},
	}

	if got := AssessRisk(p).Overall; got != RiskLow {
		t.Errorf("Overall = %s, want low", got)
	}
}

func TestAssessRiskSingleDeleteIsMedium(t *testing.T) {
	p := NewPlan("proj-1", "remove helper")
	p.FileOperations = []FileOperation{{Type: OpDelete, Path: "a.php"}}

	if got := AssessRisk(p).Overall; got != RiskMedium {
		t.Errorf("Overall = %s, want medium", got)
	}
}

func TestAssessRiskMultipleDeletesEscalate(t *testing.T) {
	p := NewPlan("proj-1", "purge")
	p.FileOperations = []FileOperation{
		{Type: OpDelete, Path: "a.php"},
		{Type: OpDelete, Path: "b.php"},
	}

	if got := AssessRisk(p).Overall; got != RiskHigh {
		t.Errorf("Overall = %s, want high", got)
	}
}

func TestAssessRiskTwoMediumsEscalate(t *testing.T) {
	p := NewPlan("proj-1", "wide change")
	p.Risks = []Risk{
		{Level: RiskMedium, Description: "touches auth"},
		{Level: RiskMedium, Description: "schema migration"},
	}
	p.FileOperations = []FileOperation{
		{Type: OpModify, Path: "a.php", Changes: []PlannedChange{{Section: "x", ChangeType: ChangeAdd, After: "y"}}},
	}

	if got := AssessRisk(p).Overall; got != RiskHigh {
		t.Errorf("Overall = %s, want high", got)
	}
}

func TestIsSafeForAutoExecution(t *testing.T) {
	p := NewPlan("proj-1", "safe")
	p.FileOperations = []FileOperation{
		{Type: OpCreate, Path: "new.php", TemplateContent: "<?php\n"},
	}
	if !IsSafeForAutoExecution(p) {
		t.Error("low-risk plan without prerequisites should auto-execute")
	}

	p.Prerequisites = []string{"run migrations"}
	if IsSafeForAutoExecution(p) {
		t.Error("plan with prerequisites should not auto-execute")
	}

	p.Prerequisites = nil
	p.FileOperations = append(p.FileOperations, FileOperation{Type: OpDelete, Path: "old.php"})
	if IsSafeForAutoExecution(p) {
		t.Error("plan with a delete should not auto-execute")
	}
}

func TestIdentifyMissingContext(t *testing.T) {
	p := NewPlan("proj-1", "edit")
	p.FileOperations = []FileOperation{
		{Type: OpModify, Path: "a.php"},
		{Type: OpModify, Path: "b.php", Dependencies: []string{"d.php", "a.php"}},
		{Type: OpCreate, Path: "c.php"},
		{Type: OpDelete, Path: "b.php"},
	}

	missing := IdentifyMissingContext(p, []string{"a.php", "d.php"})
	want := []string{"b.php", "c.php"}
	if len(missing) != len(want) {
		t.Fatalf("IdentifyMissingContext = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("IdentifyMissingContext = %v, want %v", missing, want)
		}
	}
}

func TestAssessRiskCarriesPrerequisites(t *testing.T) {
	p := NewPlan("proj-1", "migrate")
	p.Prerequisites = []string{"run migrations", "back up the database"}
	p.FileOperations = []FileOperation{
		{Type: OpModify, Path: "a.php", Changes: []PlannedChange{{Section: "x", ChangeType: ChangeAdd, After: "y"}}},
	}

	a := AssessRisk(p)
	if !a.RequiresManualSteps {
		t.Error("RequiresManualSteps = false with prerequisites present")
	}
	if len(a.Prerequisites) != 2 || a.Prerequisites[0] != "run migrations" {
		t.Errorf("Prerequisites = %v", a.Prerequisites)
	}

	p.Prerequisites = nil
	a = AssessRisk(p)
	if a.RequiresManualSteps || len(a.Prerequisites) != 0 {
		t.Errorf("assessment = %+v, want no manual steps", a)
	}
}

func TestParseRiskLevel(t *testing.T) {
	if got := ParseRiskLevel("high"); got != RiskHigh {
		t.Errorf("ParseRiskLevel(high) = %s", got)
	}
	if got := ParseRiskLevel("bogus"); got != RiskMedium {
		t.Errorf("ParseRiskLevel(bogus) = %s, want medium fallback", got)
	}
}
