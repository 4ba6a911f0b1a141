package execute

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"aide/internal/config"
	"aide/internal/diffutil"
	"aide/internal/errors"
	"aide/internal/events"
	"aide/internal/logging"
	"aide/internal/plan"
	"aide/internal/provider"
	"aide/internal/workspace"
)

// Outcome summarizes one Execute or Continue call.
type Outcome struct {
	PlanID     string          `json:"planId"`
	Status     plan.Status     `json:"status"`
	Executions []FileExecution `json:"executions"`
	// AwaitingPath is set when execution is paused at an approval gate,
	// waiting for Continue or SkipFile.
	AwaitingPath  string `json:"awaitingPath,omitempty"`
	AwaitingIndex int    `json:"awaitingIndex,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Options controls one execution run.
type Options struct {
	// ApproveEach pauses before every operation so the caller can inspect
	// it and call Continue or SkipFile.
	ApproveEach bool
}

// session is the in-flight state of one executing plan.
type session struct {
	plan       *plan.Plan
	opts       Options
	next       int
	executions []FileExecution
	awaiting   bool
}

// Engine runs approved plans. One engine serves many plans; each plan
// executes sequentially while distinct plans may run concurrently.
type Engine struct {
	writer    workspace.Writer
	completer provider.Completer
	store     ExecutionStore
	cfg       config.ExecutionConfig
	emitter   events.Emitter
	logger    *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(writer workspace.Writer, completer provider.Completer, store ExecutionStore, cfg config.ExecutionConfig, emitter events.Emitter, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Silent()
	}
	if cfg.MinTemplateChars <= 0 {
		cfg.MinTemplateChars = 50
	}
	return &Engine{
		writer:    writer,
		completer: completer,
		store:     store,
		cfg:       cfg,
		emitter:   emitter,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// Execute runs an approved plan. The plan transitions to executing up front;
// the returned outcome carries the terminal status, or executing with
// AwaitingPath set when paused at an approval gate.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan, opts Options) (Outcome, error) {
	if err := p.Transition(plan.StatusExecuting); err != nil {
		return Outcome{PlanID: p.ID, Status: p.Status}, err
	}

	s := &session{plan: p, opts: opts}
	e.mu.Lock()
	e.sessions[p.ID] = s
	e.mu.Unlock()

	return e.run(ctx, s)
}

// Continue resumes a plan paused at an approval gate, executing the awaited
// operation and proceeding until the next gate or the end of the plan.
func (e *Engine) Continue(ctx context.Context, planID string) (Outcome, error) {
	s, err := e.session(planID)
	if err != nil {
		return Outcome{PlanID: planID}, err
	}
	if !s.awaiting {
		return e.outcome(s), errors.Newf(errors.IllegalTransition,
			"plan %s is not awaiting approval", planID)
	}
	s.awaiting = false
	if out, done := e.step(ctx, s); done {
		return out, nil
	}
	return e.run(ctx, s)
}

// SkipFile skips the awaited operation and proceeds with the rest of the plan.
func (e *Engine) SkipFile(ctx context.Context, planID string) (Outcome, error) {
	s, err := e.session(planID)
	if err != nil {
		return Outcome{PlanID: planID}, err
	}
	if !s.awaiting {
		return e.outcome(s), errors.Newf(errors.IllegalTransition,
			"plan %s is not awaiting approval", planID)
	}

	fe := newExecution(s.plan, s.next)
	fe.finish(StatusSkipped)
	e.record(ctx, s, fe)
	events.Emit(e.emitter, events.FileSkipped, s.plan.ID, map[string]interface{}{"path": fe.Path})

	s.awaiting = false
	s.next++
	return e.run(ctx, s)
}

func (e *Engine) session(planID string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[planID]
	if !ok {
		return nil, errors.Newf(errors.NotFound, "no execution in progress for plan %s", planID)
	}
	return s, nil
}

// run drives the session forward until a gate, a stop-on-error failure, or
// the end of the operation list.
func (e *Engine) run(ctx context.Context, s *session) (Outcome, error) {
	for s.next < len(s.plan.FileOperations) {
		if s.opts.ApproveEach {
			s.awaiting = true
			op := s.plan.FileOperations[s.next]
			events.Emit(e.emitter, events.ApprovalRequired, s.plan.ID, map[string]interface{}{
				"path":      op.Path,
				"operation": string(op.Type),
			})
			out := e.outcome(s)
			out.AwaitingPath = op.Path
			out.AwaitingIndex = s.next
			return out, nil
		}
		if out, done := e.step(ctx, s); done {
			return out, nil
		}
	}
	return e.finishSession(ctx, s)
}

// step executes the next operation. It returns done=true when the session
// reached a terminal state (failure with stop-on-error, or plan end).
func (e *Engine) step(ctx context.Context, s *session) (Outcome, bool) {
	op := s.plan.FileOperations[s.next]
	fe := newExecution(s.plan, s.next)
	events.Emit(e.emitter, events.FileStarted, s.plan.ID, map[string]interface{}{
		"path":      op.Path,
		"operation": string(op.Type),
	})

	if err := e.apply(ctx, s, &op, fe); err != nil {
		fe.Error = err.Error()
		fe.finish(StatusFailed)
		e.record(ctx, s, fe)
		events.Emit(e.emitter, events.FileFailed, s.plan.ID, map[string]interface{}{
			"path":  op.Path,
			"error": err.Error(),
		})
		e.logger.Error("File operation failed", map[string]interface{}{
			"plan":      s.plan.ID,
			"path":      op.Path,
			"operation": string(op.Type),
			"error":     err.Error(),
		})
		if e.cfg.StopOnError {
			out, _ := e.fail(ctx, s, err.Error())
			return out, true
		}
	} else {
		fe.finish(StatusCompleted)
		e.record(ctx, s, fe)
		events.Emit(e.emitter, events.FileCompleted, s.plan.ID, map[string]interface{}{"path": op.Path})
	}

	s.next++
	if s.next >= len(s.plan.FileOperations) {
		out, _ := e.finishSession(ctx, s)
		return out, true
	}
	return Outcome{}, false
}

func (e *Engine) apply(ctx context.Context, s *session, op *plan.FileOperation, fe *FileExecution) error {
	switch op.Type {
	case plan.OpCreate:
		content := op.TemplateContent
		if e.needsSynthesis(content) {
			generated, err := e.synthesize(ctx, s.plan, op, "")
			if err != nil {
				return err
			}
			content = generated
		}
		res := e.writer.Create(s.plan.ID, fe.OpIndex, op.Path, content)
		if res.Err != nil {
			return res.Err
		}
		fe.Diff = diffutil.Generate("", content, op.Path)
		return nil

	case plan.OpModify:
		current, exists, err := e.writer.Read(op.Path)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Newf(errors.FileMissing, "cannot modify missing file %s", op.Path)
		}
		updated, err := e.applyChanges(ctx, s.plan, op, current)
		if err != nil {
			return err
		}
		res := e.writer.Modify(s.plan.ID, fe.OpIndex, op.Path, updated)
		if res.Err != nil {
			return res.Err
		}
		fe.BackupPath = res.BackupPath
		fe.OriginalContent = res.OriginalContent
		fe.Diff = diffutil.Generate(current, updated, op.Path)
		return nil

	case plan.OpDelete:
		res := e.writer.Delete(s.plan.ID, fe.OpIndex, op.Path)
		if res.Err != nil {
			return res.Err
		}
		fe.BackupPath = res.BackupPath
		fe.OriginalContent = res.OriginalContent
		fe.Diff = diffutil.Generate(res.OriginalContent, "", op.Path)
		return nil

	case plan.OpRename, plan.OpMove:
		res := e.writer.Move(s.plan.ID, fe.OpIndex, op.Path, op.NewPath)
		if res.Err != nil {
			return res.Err
		}
		fe.BackupPath = res.BackupPath
		fe.OriginalContent = res.OriginalContent
		return nil

	default:
		return errors.Newf(errors.ValidationFailed, "unknown operation type %q", op.Type)
	}
}

// applyChanges derives the new file content for a modify operation. Exact
// replace edits apply directly; anything else is synthesized by the
// reasoning service from the planned changes.
func (e *Engine) applyChanges(ctx context.Context, p *plan.Plan, op *plan.FileOperation, current string) (string, error) {
	updated := current
	direct := true
	for _, ch := range op.Changes {
		if ch.ChangeType == plan.ChangeReplace && ch.Before != "" && strings.Contains(updated, ch.Before) {
			updated = strings.Replace(updated, ch.Before, ch.After, 1)
			continue
		}
		direct = false
		break
	}
	if direct {
		return updated, nil
	}
	return e.synthesize(ctx, p, op, current)
}

// placeholderMarkers flag template content that was sketched rather than
// written out.
var placeholderMarkers = []string{"{{", "TODO", "...", "PLACEHOLDER"}

func (e *Engine) needsSynthesis(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < e.cfg.MinTemplateChars {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

const synthesisSystemPrompt = `You are a senior engineer writing the final content of one file.
Respond with the complete file content and nothing else. No markdown fences,
no commentary. The content must be production ready with no placeholders.`

func (e *Engine) synthesize(ctx context.Context, p *plan.Plan, op *plan.FileOperation, current string) (string, error) {
	if e.completer == nil {
		return "", errors.Newf(errors.ExecutionFailed,
			"operation for %s needs content generation but no provider is configured", op.Path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s\n%s\n\n", p.Title, p.Description)
	fmt.Fprintf(&sb, "File: %s\nOperation: %s\n%s\n", op.Path, op.Type, op.Description)
	if op.TemplateContent != "" {
		fmt.Fprintf(&sb, "\nTemplate or sketch:\n%s\n", op.TemplateContent)
	}
	for _, ch := range op.Changes {
		fmt.Fprintf(&sb, "\nChange (%s) in %s: %s\n", ch.ChangeType, ch.Section, ch.Explanation)
		if ch.Before != "" {
			fmt.Fprintf(&sb, "Before:\n%s\n", ch.Before)
		}
		if ch.After != "" {
			fmt.Fprintf(&sb, "After:\n%s\n", ch.After)
		}
	}
	if current != "" {
		fmt.Fprintf(&sb, "\nCurrent file content:\n%s\n", current)
	}

	content, err := e.completer.Complete(ctx, synthesisSystemPrompt, sb.String())
	if err != nil {
		return "", errors.Wrap(errors.ExecutionFailed,
			fmt.Sprintf("content generation for %s failed", op.Path), err)
	}
	content = stripCodeFence(content)
	if strings.TrimSpace(content) == "" {
		return "", errors.Newf(errors.MalformedResponse, "generated content for %s is empty", op.Path)
	}
	return content, nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) finishSession(ctx context.Context, s *session) (Outcome, error) {
	failed := 0
	for _, fe := range s.executions {
		if fe.Status == StatusFailed {
			failed++
		}
	}

	var err error
	if failed > 0 {
		err = s.plan.Transition(plan.StatusFailed)
	} else {
		err = s.plan.Transition(plan.StatusCompleted)
	}
	e.dropSession(s.plan.ID)

	out := e.outcome(s)
	if failed > 0 {
		out.Error = fmt.Sprintf("%d operation(s) failed", failed)
	}
	events.Emit(e.emitter, events.ExecutionFinished, s.plan.ID, map[string]interface{}{
		"status": string(s.plan.Status),
		"failed": failed,
	})
	return out, err
}

func (e *Engine) fail(ctx context.Context, s *session, reason string) (Outcome, error) {
	err := s.plan.Transition(plan.StatusFailed)
	e.dropSession(s.plan.ID)
	out := e.outcome(s)
	out.Error = reason
	events.Emit(e.emitter, events.ExecutionFinished, s.plan.ID, map[string]interface{}{
		"status": string(s.plan.Status),
		"error":  reason,
	})
	return out, err
}

func (e *Engine) dropSession(planID string) {
	e.mu.Lock()
	delete(e.sessions, planID)
	e.mu.Unlock()
}

func (e *Engine) outcome(s *session) Outcome {
	executions := make([]FileExecution, len(s.executions))
	copy(executions, s.executions)
	return Outcome{
		PlanID:     s.plan.ID,
		Status:     s.plan.Status,
		Executions: executions,
	}
}

func (e *Engine) record(ctx context.Context, s *session, fe *FileExecution) {
	s.executions = append(s.executions, *fe)
	if e.store == nil {
		return
	}
	if err := e.store.SaveExecution(ctx, fe); err != nil {
		e.logger.Warn("Failed to persist file execution", map[string]interface{}{
			"plan":  fe.PlanID,
			"path":  fe.Path,
			"error": err.Error(),
		})
	}
}
