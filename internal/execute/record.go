// Package execute carries approved plans out against the working tree, one
// file operation at a time, with per-operation records sufficient to roll the
// whole plan back.
package execute

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aide/internal/plan"
)

// Status is the lifecycle state of one file execution.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusRolledBack Status = "rolled_back"
)

// FileExecution records the outcome of one plan operation. The original
// content caches what rollback needs so it never depends on re-reading the
// mutated tree.
type FileExecution struct {
	ID              string             `json:"id"`
	PlanID          string             `json:"planId"`
	OpIndex         int                `json:"opIndex"`
	Operation       plan.OperationType `json:"operation"`
	Path            string             `json:"path"`
	NewPath         string             `json:"newPath,omitempty"`
	Status          Status             `json:"status"`
	Diff            string             `json:"diff,omitempty"`
	BackupPath      string             `json:"backupPath,omitempty"`
	OriginalContent string             `json:"originalContent,omitempty"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"startedAt"`
	FinishedAt      time.Time          `json:"finishedAt,omitempty"`
}

func newExecution(p *plan.Plan, opIndex int) *FileExecution {
	op := p.FileOperations[opIndex]
	return &FileExecution{
		ID:        uuid.New().String(),
		PlanID:    p.ID,
		OpIndex:   opIndex,
		Operation: op.Type,
		Path:      op.Path,
		NewPath:   op.NewPath,
		Status:    StatusInProgress,
		StartedAt: time.Now().UTC(),
	}
}

func (fe *FileExecution) finish(status Status) {
	fe.Status = status
	fe.FinishedAt = time.Now().UTC()
}

// ExecutionStore persists per-operation records. Implemented by the sqlite
// store; may be nil in tests.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, fe *FileExecution) error
	ListExecutions(ctx context.Context, planID string) ([]FileExecution, error)
}
