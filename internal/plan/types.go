// Package plan drafts, validates, and risk-assesses the file-change plans
// the execution engine carries out.
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationType is the closed set of file operation kinds.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpModify OperationType = "modify"
	OpDelete OperationType = "delete"
	OpRename OperationType = "rename"
	OpMove   OperationType = "move"
)

// ParseOperationType maps a string to an OperationType; unknown strings
// return false.
func ParseOperationType(s string) (OperationType, bool) {
	switch OperationType(s) {
	case OpCreate, OpModify, OpDelete, OpRename, OpMove:
		return OperationType(s), true
	default:
		return "", false
	}
}

// ChangeType is the kind of one planned edit.
type ChangeType string

const (
	ChangeAdd     ChangeType = "add"
	ChangeRemove  ChangeType = "remove"
	ChangeReplace ChangeType = "replace"
)

// PlannedChange is one edit within a modify operation.
type PlannedChange struct {
	Section     string     `json:"section"`
	ChangeType  ChangeType `json:"changeType"`
	Before      string     `json:"before,omitempty"`
	After       string     `json:"after,omitempty"`
	StartLine   int        `json:"startLine,omitempty"`
	EndLine     int        `json:"endLine,omitempty"`
	Explanation string     `json:"explanation"`
}

// Validate enforces the per-variant invariants: replace requires both sides,
// remove implies an empty after.
func (c *PlannedChange) Validate() error {
	switch c.ChangeType {
	case ChangeReplace:
		if c.Before == "" || c.After == "" {
			return fmt.Errorf("replace change in %q requires both before and after", c.Section)
		}
	case ChangeRemove:
		c.After = ""
	case ChangeAdd:
		// nothing required beyond the change itself
	default:
		return fmt.Errorf("unknown change type %q", c.ChangeType)
	}
	return nil
}

// FileOperation is one ordered step of a plan. Required fields vary by type
// and are enforced at construction.
type FileOperation struct {
	Type            OperationType   `json:"type"`
	Path            string          `json:"path"`
	NewPath         string          `json:"newPath,omitempty"`
	Description     string          `json:"description"`
	Changes         []PlannedChange `json:"changes,omitempty"`
	TemplateContent string          `json:"templateContent,omitempty"`
	Priority        int             `json:"priority"`
	Dependencies    []string        `json:"dependencies,omitempty"` // paths of operations this one needs first
}

// Validate enforces the per-variant required fields. Create is allowed an
// empty template because content generation may be deferred to execution.
func (op *FileOperation) Validate() error {
	if op.Path == "" {
		return fmt.Errorf("operation of type %s has no path", op.Type)
	}
	switch op.Type {
	case OpCreate:
		// templateContent may be empty when generation is deferred
	case OpModify:
		if len(op.Changes) == 0 {
			return fmt.Errorf("modify operation for %s has no changes", op.Path)
		}
		for i := range op.Changes {
			if err := op.Changes[i].Validate(); err != nil {
				return err
			}
		}
	case OpDelete:
		// path is enough
	case OpRename, OpMove:
		if op.NewPath == "" {
			return fmt.Errorf("%s operation for %s requires newPath", op.Type, op.Path)
		}
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// RiskLevel grades one risk or a whole plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskRank = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}

// ParseRiskLevel maps a string to a RiskLevel, defaulting to medium.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s)
	default:
		return RiskMedium
	}
}

// Risk is one declared risk of a plan.
type Risk struct {
	Level       RiskLevel `json:"level"`
	Description string    `json:"description"`
	Mitigation  string    `json:"mitigation,omitempty"`
}

// Plan is an ordered set of file operations proposed to satisfy an intent.
// The operation list is immutable once the plan is approved; refinement
// produces a new plan rather than editing in place.
type Plan struct {
	ID                     string          `json:"id"`
	ProjectID              string          `json:"projectId"`
	ConversationID         string          `json:"conversationId,omitempty"`
	IntentID               string          `json:"intentId,omitempty"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	FileOperations         []FileOperation `json:"fileOperations"`
	Status                 Status          `json:"status"`
	Risks                  []Risk          `json:"risks,omitempty"`
	Prerequisites          []string        `json:"prerequisites,omitempty"`
	EstimatedFilesAffected int             `json:"estimatedFilesAffected"`
	EstimatedComplexity    string          `json:"estimatedComplexity,omitempty"`
	GenerationError        string          `json:"generationError,omitempty"`
	RefinedFromID          string          `json:"refinedFromId,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

// NewPlan creates an empty draft plan.
func NewPlan(projectID, title string) *Plan {
	now := time.Now().UTC()
	return &Plan{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     title,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsMutable reports whether the operation list may still be replaced.
// Only draft and pending-review plans are mutable.
func (p *Plan) IsMutable() bool {
	return p.Status == StatusDraft || p.Status == StatusPendingReview
}

// DeleteCount counts delete operations, the data-loss amplifier risk
// assessment watches for.
func (p *Plan) DeleteCount() int {
	n := 0
	for _, op := range p.FileOperations {
		if op.Type == OpDelete {
			n++
		}
	}
	return n
}
