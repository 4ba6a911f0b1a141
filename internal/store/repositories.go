package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aide/internal/conversation"
	"aide/internal/errors"
	"aide/internal/execute"
	"aide/internal/intent"
	"aide/internal/plan"
)

// Store bundles the repositories behind one database handle. It satisfies
// intent.AuditStore, plan.PlanStore, and execute.ExecutionStore.
type Store struct {
	db *DB
}

func New(db *DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for the cache.
func (s *Store) DB() *DB {
	return s.db
}

// SaveConversation inserts or updates a conversation.
func (s *Store) SaveConversation(ctx context.Context, c *conversation.Conversation) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO conversations (id, project_id, title, phase, active_plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			phase = excluded.phase,
			active_plan_id = excluded.active_plan_id,
			updated_at = excluded.updated_at
	`, c.ID, c.ProjectID, c.Title, string(c.Phase), nullable(c.ActivePlanID),
		c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	var phase string
	var activePlan sql.NullString
	var createdAt, updatedAt string

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, project_id, title, phase, active_plan_id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.ProjectID, &c.Title, &phase, &activePlan, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.NotFound, "conversation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	c.Phase = conversation.Phase(phase)
	c.ActivePlanID = activePlan.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// SaveMessage appends a message to a conversation.
func (s *Store) SaveMessage(ctx context.Context, m *conversation.Message) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, intent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, string(m.Role), m.Content, nullable(m.IntentID),
		m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in order, newest last.
// A non-positive limit returns everything.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, intent_id, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at
	`
	args := []interface{}{conversationID}
	if limit > 0 {
		// take the newest N, then re-sort ascending
		query = `
			SELECT id, conversation_id, role, content, intent_id, created_at FROM (
				SELECT id, conversation_id, role, content, intent_id, created_at
				FROM messages WHERE conversation_id = ?
				ORDER BY created_at DESC LIMIT ?
			) ORDER BY created_at
		`
		args = append(args, limit)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []conversation.Message
	for rows.Next() {
		var m conversation.Message
		var role string
		var intentID sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &intentID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = conversation.Role(role)
		m.IntentID = intentID.String
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SaveIntent persists a classified intent for audit.
func (s *Store) SaveIntent(ctx context.Context, projectID string, it *intent.Intent) error {
	payload, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO intents (id, project_id, type, confidence, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, it.ID, projectID, string(it.Type), it.Confidence, string(payload),
		it.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}
	return nil
}

// GetIntent loads an intent by id.
func (s *Store) GetIntent(ctx context.Context, id string) (*intent.Intent, error) {
	var payload string
	err := s.db.conn.QueryRowContext(ctx,
		"SELECT payload_json FROM intents WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.NotFound, "intent %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}
	var it intent.Intent
	if err := json.Unmarshal([]byte(payload), &it); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}
	return &it, nil
}

// SavePlan inserts or updates a plan; the full plan travels as JSON while
// the queryable columns are kept in sync.
func (s *Store) SavePlan(ctx context.Context, p *plan.Plan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO plans (id, project_id, conversation_id, intent_id, title, status, payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`, p.ID, p.ProjectID, nullable(p.ConversationID), nullable(p.IntentID), p.Title,
		string(p.Status), string(payload),
		p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// GetPlan loads a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	var payload string
	err := s.db.conn.QueryRowContext(ctx,
		"SELECT payload_json FROM plans WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.NotFound, "plan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	var p plan.Plan
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &p, nil
}

// ListPlans returns a project's plans, newest first.
func (s *Store) ListPlans(ctx context.Context, projectID string, limit int) ([]plan.Plan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT payload_json FROM plans
		WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		var p plan.Plan
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// SaveExecution inserts or updates a file execution record.
func (s *Store) SaveExecution(ctx context.Context, fe *execute.FileExecution) error {
	var finished interface{}
	if !fe.FinishedAt.IsZero() {
		finished = fe.FinishedAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO file_executions (
			id, plan_id, op_index, operation, path, new_path, status,
			diff, backup_path, original_content, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			diff = excluded.diff,
			backup_path = excluded.backup_path,
			original_content = excluded.original_content,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, fe.ID, fe.PlanID, fe.OpIndex, string(fe.Operation), fe.Path, nullable(fe.NewPath),
		string(fe.Status), nullable(fe.Diff), nullable(fe.BackupPath),
		nullable(fe.OriginalContent), nullable(fe.Error),
		fe.StartedAt.Format(time.RFC3339Nano), finished)
	if err != nil {
		return fmt.Errorf("failed to save file execution: %w", err)
	}
	return nil
}

// ListExecutions returns a plan's execution records in operation order.
func (s *Store) ListExecutions(ctx context.Context, planID string) ([]execute.FileExecution, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, plan_id, op_index, operation, path, new_path, status,
			diff, backup_path, original_content, error, started_at, finished_at
		FROM file_executions WHERE plan_id = ? ORDER BY op_index
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file executions: %w", err)
	}
	defer rows.Close()

	var executions []execute.FileExecution
	for rows.Next() {
		var fe execute.FileExecution
		var operation, status, startedAt string
		var newPath, diff, backupPath, original, execErr, finishedAt sql.NullString
		if err := rows.Scan(&fe.ID, &fe.PlanID, &fe.OpIndex, &operation, &fe.Path,
			&newPath, &status, &diff, &backupPath, &original, &execErr,
			&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file execution: %w", err)
		}
		fe.Operation = plan.OperationType(operation)
		fe.Status = execute.Status(status)
		fe.NewPath = newPath.String
		fe.Diff = diff.String
		fe.BackupPath = backupPath.String
		fe.OriginalContent = original.String
		fe.Error = execErr.String
		fe.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			fe.FinishedAt = parseTime(finishedAt.String)
		}
		executions = append(executions, fe)
	}
	return executions, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var (
	_ intent.AuditStore      = (*Store)(nil)
	_ plan.PlanStore         = (*Store)(nil)
	_ execute.ExecutionStore = (*Store)(nil)
)
