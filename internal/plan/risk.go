package plan

import "fmt"

// RiskAssessment summarizes plan risk for review and auto-execution gating.
type RiskAssessment struct {
	Overall             RiskLevel `json:"overall"`
	Risks               []Risk    `json:"risks"`
	Prerequisites       []string  `json:"prerequisites,omitempty"`
	RequiresManualSteps bool      `json:"requiresManualSteps"`
}

// AssessRisk combines declared risks with structural heuristics. The overall
// level is the maximum of all risks, escalated to high when several medium
// risks or multiple deletes stack up.
func AssessRisk(p *Plan) RiskAssessment {
	risks := append([]Risk{}, p.Risks...)

	if n := p.DeleteCount(); n > 0 {
		level := RiskMedium
		if n > 1 {
			level = RiskHigh
		}
		risks = append(risks, Risk{
			Level:       level,
			Description: fmt.Sprintf("plan deletes %d file(s)", n),
			Mitigation:  "backups are taken before each delete and restored on rollback",
		})
	}
	if len(p.FileOperations) > 10 {
		risks = append(risks, Risk{
			Level:       RiskMedium,
			Description: fmt.Sprintf("plan touches %d operations; partial failure surface is large", len(p.FileOperations)),
		})
	}

	overall := RiskLow
	mediums := 0
	for _, r := range risks {
		if riskRank[r.Level] > riskRank[overall] {
			overall = r.Level
		}
		if r.Level == RiskMedium {
			mediums++
		}
	}
	if mediums >= 2 && overall != RiskHigh {
		overall = RiskHigh
	}

	return RiskAssessment{
		Overall:             overall,
		Risks:               risks,
		Prerequisites:       append([]string{}, p.Prerequisites...),
		RequiresManualSteps: len(p.Prerequisites) > 0,
	}
}

// IsSafeForAutoExecution reports whether the plan may run without an explicit
// approval step: only low-risk plans with no manual prerequisites qualify.
func IsSafeForAutoExecution(p *Plan) bool {
	a := AssessRisk(p)
	return a.Overall == RiskLow && !a.RequiresManualSteps
}

// IdentifyMissingContext lists the operation target paths and declared
// dependency paths that retrieval never surfaced, a signal the plan may be
// guessing at their contents.
func IdentifyMissingContext(p *Plan, retrievedFiles []string) []string {
	seen := make(map[string]bool, len(retrievedFiles))
	for _, f := range retrievedFiles {
		seen[f] = true
	}
	reported := make(map[string]bool)
	var missing []string
	note := func(path string) {
		if path != "" && !seen[path] && !reported[path] {
			reported[path] = true
			missing = append(missing, path)
		}
	}
	for _, op := range p.FileOperations {
		note(op.Path)
		for _, dep := range op.Dependencies {
			note(dep)
		}
	}
	return missing
}
