// Package orchestrator drives a conversation through the pipeline: intent
// classification, context retrieval, planning, review, and gated execution.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aide/internal/config"
	"aide/internal/conversation"
	"aide/internal/errors"
	"aide/internal/events"
	"aide/internal/execute"
	"aide/internal/intent"
	"aide/internal/logging"
	"aide/internal/plan"
	"aide/internal/project"
	"aide/internal/provider"
	"aide/internal/redact"
	"aide/internal/retrieval"
	"aide/internal/store"
	"aide/internal/workspace"
)

// Reply is what one processed message yields.
type Reply struct {
	ConversationID string             `json:"conversationId"`
	Phase          conversation.Phase `json:"phase"`
	Text           string             `json:"text"`
	Plan           *plan.Plan         `json:"plan,omitempty"`
	Outcome        *execute.Outcome   `json:"outcome,omitempty"`
}

// Orchestrator owns the pipeline for one project.
type Orchestrator struct {
	cfg        *config.Config
	proj       *project.Project
	store      *store.Store
	cache      *store.Cache
	snapshots  *SnapshotLoader
	classifier *intent.Classifier
	retriever  *retrieval.Engine
	builder    *plan.Builder
	validator  *plan.Validator
	engine     *execute.Engine
	completer  provider.Completer
	emitter    events.Emitter
	logger     *logging.Logger
}

// New wires the full pipeline for a project. emitter may be nil.
func New(cfg *config.Config, proj *project.Project, st *store.Store, completer provider.Completer, emitter events.Emitter, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Silent()
	}
	redactor := redact.NewRedactor(logger)
	writer := workspace.NewFSWriter(proj.Root, cfg.Execution.BackupDir, logger)

	return &Orchestrator{
		cfg:        cfg,
		proj:       proj,
		store:      st,
		cache:      store.NewCache(st.DB()),
		snapshots:  NewSnapshotLoader(cfg.Graph, cfg.Cache, logger),
		classifier: intent.NewClassifier(completer, st, cfg.Intent, logger),
		retriever:  retrieval.NewEngine(cfg.Retrieval, cfg.Graph, redactor, logger),
		builder:    plan.NewBuilder(completer, st, logger),
		validator:  plan.NewValidator(proj.Root, logger),
		engine:     execute.NewEngine(writer, completer, st, cfg.Execution, emitter, logger),
		completer:  completer,
		emitter:    emitter,
		logger:     logger,
	}
}

// StartConversation opens a fresh conversation in the intake phase.
func (o *Orchestrator) StartConversation(ctx context.Context) (*conversation.Conversation, error) {
	conv := conversation.New(o.proj.ID)
	if err := o.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ProcessMessage advances a conversation by one user turn. The reply depends
// on the conversation's phase: early phases run classification and planning,
// the approval phase parses the verdict, and the executing phase handles
// per-file gates.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, message string) (Reply, error) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Reply{}, err
	}
	if conv.Phase.IsTerminal() {
		return Reply{
			ConversationID: conv.ID,
			Phase:          conv.Phase,
			Text:           fmt.Sprintf("This conversation is %s. Start a new conversation to begin something else.", conv.Phase),
		}, nil
	}

	userMsg := conv.NewMessage(conversation.RoleUser, message)
	if err := o.store.SaveMessage(ctx, userMsg); err != nil {
		o.logger.Warn("Failed to persist message", map[string]interface{}{
			"conversation": conv.ID,
			"error":        err.Error(),
		})
	}
	if conv.Title == "" {
		conv.Title = provider.Truncate(strings.TrimSpace(message), 80)
	}

	var reply Reply
	switch conv.Phase {
	case conversation.PhaseApproval:
		reply, err = o.handleApproval(ctx, conv, message)
	case conversation.PhaseExecuting:
		reply, err = o.handleExecuting(ctx, conv, message)
	case conversation.PhasePaused:
		reply, err = o.handlePaused(ctx, conv, message)
	default:
		reply, err = o.handleRequest(ctx, conv, message)
	}
	if err != nil {
		events.Emit(o.emitter, events.ErrorRaised, conv.ID, map[string]interface{}{
			"error": err.Error(),
		})
		return reply, err
	}

	assistantMsg := conv.NewMessage(conversation.RoleAssistant, reply.Text)
	if saveErr := o.store.SaveMessage(ctx, assistantMsg); saveErr != nil {
		o.logger.Warn("Failed to persist message", map[string]interface{}{
			"conversation": conv.ID,
			"error":        saveErr.Error(),
		})
	}
	if saveErr := o.store.SaveConversation(ctx, conv); saveErr != nil {
		o.logger.Warn("Failed to persist conversation", map[string]interface{}{
			"conversation": conv.ID,
			"error":        saveErr.Error(),
		})
	}

	reply.ConversationID = conv.ID
	reply.Phase = conv.Phase
	return reply, nil
}

// handleRequest runs the intake, discovery, and planning phases in one pass.
func (o *Orchestrator) handleRequest(ctx context.Context, conv *conversation.Conversation, message string) (Reply, error) {
	history, err := o.historyFor(ctx, conv.ID)
	if err != nil {
		o.logger.Warn("Failed to load history", map[string]interface{}{
			"conversation": conv.ID,
			"error":        err.Error(),
		})
	}

	it := o.classifier.Analyze(ctx, o.proj, message, history)
	events.Emit(o.emitter, events.IntentClassified, conv.ID, map[string]interface{}{
		"type":       string(it.Type),
		"confidence": it.Confidence,
	})

	if o.classifier.NeedsClarification(it) {
		if err := o.transition(conv, conversation.PhaseClarification); err != nil {
			return Reply{}, err
		}
		events.Emit(o.emitter, events.ClarificationNeeded, conv.ID, map[string]interface{}{
			"questions": len(it.ClarificationQuestions),
		})
		return Reply{Text: clarificationText(it)}, nil
	}

	if conv.Phase == conversation.PhaseClarification {
		if err := o.transition(conv, conversation.PhaseIntake); err != nil {
			return Reply{}, err
		}
	}

	retrieved := o.retrieveContext(ctx, conv.ID, it, message)

	if it.IsQuestion() {
		answer, err := o.answerQuestion(ctx, message, retrieved)
		if err != nil {
			return Reply{}, err
		}
		if err := o.transition(conv, conversation.PhaseCompleted); err != nil {
			return Reply{}, err
		}
		events.Emit(o.emitter, events.AnswerGiven, conv.ID, map[string]interface{}{
			"chunks": len(retrieved.Chunks),
		})
		return Reply{Text: answer}, nil
	}

	if multi := intent.DetectMultipleIntents(message); multi.IsMultiIntent {
		o.logger.Info("Multiple intents detected", map[string]interface{}{
			"conversation": conv.ID,
			"detected":     len(multi.Detected),
		})
	}

	if err := o.transition(conv, conversation.PhaseDiscovery); err != nil {
		return Reply{}, err
	}
	if err := o.transition(conv, conversation.PhasePlanning); err != nil {
		return Reply{}, err
	}

	p := o.builder.Generate(ctx, o.proj, it, retrieved, message)
	p.ConversationID = conv.ID
	events.Emit(o.emitter, events.PlanDrafted, p.ID, map[string]interface{}{
		"title":      p.Title,
		"operations": len(p.FileOperations),
	})

	if p.GenerationError != "" {
		events.Emit(o.emitter, events.ErrorRaised, conv.ID, map[string]interface{}{
			"error": p.GenerationError,
		})
		if err := o.transition(conv, conversation.PhaseFailed); err != nil {
			return Reply{}, err
		}
		return Reply{
			Plan: p,
			Text: fmt.Sprintf("I could not draft a plan for this request: %s", p.GenerationError),
		}, nil
	}

	validation := o.validator.Validate(p)
	if !validation.IsValid {
		events.Emit(o.emitter, events.ErrorRaised, conv.ID, map[string]interface{}{
			"error": strings.Join(validation.Errors, "; "),
		})
		if err := o.transition(conv, conversation.PhaseFailed); err != nil {
			return Reply{}, err
		}
		return Reply{
			Plan: p,
			Text: fmt.Sprintf("The drafted plan does not validate against the working tree:\n%s",
				strings.Join(validation.Errors, "\n")),
		}, nil
	}
	warnMissingContext(&validation, p, retrieved.Files)

	if err := p.Transition(plan.StatusPendingReview); err != nil {
		return Reply{}, err
	}
	o.persistPlan(ctx, p)
	conv.ActivePlanID = p.ID
	if err := o.transition(conv, conversation.PhaseApproval); err != nil {
		return Reply{}, err
	}

	return Reply{Plan: p, Text: planSummary(p, validation)}, nil
}

// warnMissingContext flags plan targets that retrieval never surfaced, so the
// reviewer sees where the plan may be guessing at file contents.
func warnMissingContext(validation *plan.ValidationResult, p *plan.Plan, retrievedFiles []string) {
	missing := plan.IdentifyMissingContext(p, retrievedFiles)
	if len(missing) == 0 {
		return
	}
	validation.Warnings = append(validation.Warnings,
		fmt.Sprintf("no retrieved context for: %s", strings.Join(missing, ", ")))
}

// handleApproval parses the reviewer's verdict on the pending plan.
func (o *Orchestrator) handleApproval(ctx context.Context, conv *conversation.Conversation, message string) (Reply, error) {
	p, err := o.store.GetPlan(ctx, conv.ActivePlanID)
	if err != nil {
		return Reply{}, err
	}

	switch parseVerdict(message) {
	case verdictApprove:
		if err := p.Transition(plan.StatusApproved); err != nil {
			return Reply{}, err
		}
		o.persistPlan(ctx, p)
		events.Emit(o.emitter, events.PlanApproved, p.ID, nil)
		if err := o.transition(conv, conversation.PhaseExecuting); err != nil {
			return Reply{}, err
		}
		return o.execute(ctx, conv, p)

	case verdictReject:
		if err := p.Transition(plan.StatusRejected); err != nil {
			return Reply{}, err
		}
		o.persistPlan(ctx, p)
		events.Emit(o.emitter, events.PlanRejected, p.ID, nil)

		feedback := rejectionFeedback(message)
		if feedback == "" {
			// Rejection without feedback drops the plan and starts over.
			conv.ActivePlanID = ""
			if err := o.transition(conv, conversation.PhaseIntake); err != nil {
				return Reply{}, err
			}
			return Reply{Plan: p, Text: "Plan rejected. Tell me what you would like to do instead."}, nil
		}

		if err := o.transition(conv, conversation.PhasePlanning); err != nil {
			return Reply{}, err
		}
		it := o.intentFor(ctx, p.IntentID)
		retrieved := o.retrieveContext(ctx, conv.ID, it, feedback)
		revised := o.builder.Refine(ctx, o.proj, p, retrieved, feedback)
		revised.ConversationID = conv.ID
		if revised.GenerationError != "" {
			events.Emit(o.emitter, events.ErrorRaised, conv.ID, map[string]interface{}{
				"error": revised.GenerationError,
			})
			if err := o.transition(conv, conversation.PhaseFailed); err != nil {
				return Reply{}, err
			}
			return Reply{Plan: revised,
				Text: fmt.Sprintf("I could not revise the plan: %s", revised.GenerationError)}, nil
		}
		if err := revised.Transition(plan.StatusPendingReview); err != nil {
			return Reply{}, err
		}
		o.persistPlan(ctx, revised)
		conv.ActivePlanID = revised.ID
		if err := o.transition(conv, conversation.PhaseApproval); err != nil {
			return Reply{}, err
		}
		validation := o.validator.Validate(revised)
		warnMissingContext(&validation, revised, retrieved.Files)
		return Reply{Plan: revised, Text: "Here is the revised plan.\n\n" + planSummary(revised, validation)}, nil

	default:
		return Reply{Plan: p,
			Text: "Please approve or reject the plan (yes/no). You can add feedback after a rejection."}, nil
	}
}

// handleExecuting drives a plan paused at a per-file approval gate.
func (o *Orchestrator) handleExecuting(ctx context.Context, conv *conversation.Conversation, message string) (Reply, error) {
	token := strings.ToLower(strings.TrimSpace(message))
	var outcome execute.Outcome
	var err error

	switch {
	case token == "skip":
		outcome, err = o.engine.SkipFile(ctx, conv.ActivePlanID)
	case parseVerdict(message) == verdictApprove:
		outcome, err = o.engine.Continue(ctx, conv.ActivePlanID)
	case parseVerdict(message) == verdictReject:
		return o.cancelExecution(ctx, conv)
	default:
		return Reply{Text: "Execution is paused at a file gate. Reply yes to apply it, skip to skip it, or no to cancel and roll back."}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	return o.settle(ctx, conv, outcome)
}

// handlePaused lets a cancelled conversation resume or give up.
func (o *Orchestrator) handlePaused(ctx context.Context, conv *conversation.Conversation, message string) (Reply, error) {
	if parseVerdict(message) == verdictReject {
		if err := o.transition(conv, conversation.PhaseFailed); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Conversation closed."}, nil
	}
	return Reply{Text: "This conversation is paused after a rollback. Reply no to close it, or start a new conversation to try again."}, nil
}

// execute runs the active plan, gating each file when the risk assessment
// demands a human in the loop.
func (o *Orchestrator) execute(ctx context.Context, conv *conversation.Conversation, p *plan.Plan) (Reply, error) {
	opts := execute.Options{ApproveEach: !plan.IsSafeForAutoExecution(p)}
	outcome, err := o.engine.Execute(ctx, p, opts)
	if err != nil {
		return Reply{}, err
	}
	o.persistPlan(ctx, p)
	return o.settle(ctx, conv, outcome)
}

// settle maps an execution outcome onto the conversation phase.
func (o *Orchestrator) settle(ctx context.Context, conv *conversation.Conversation, outcome execute.Outcome) (Reply, error) {
	if outcome.AwaitingPath != "" {
		op := outcome.AwaitingIndex + 1
		return Reply{Outcome: &outcome,
			Text: fmt.Sprintf("Ready to apply operation %d (%s). Reply yes to proceed, skip to skip, or no to cancel.",
				op, outcome.AwaitingPath)}, nil
	}

	p, err := o.store.GetPlan(ctx, conv.ActivePlanID)
	if err == nil && p.Status != outcome.Status {
		if terr := p.Transition(outcome.Status); terr != nil {
			return Reply{}, terr
		}
		o.persistPlan(ctx, p)
	}

	switch outcome.Status {
	case plan.StatusCompleted:
		if err := o.transition(conv, conversation.PhaseCompleted); err != nil {
			return Reply{}, err
		}
		return Reply{Outcome: &outcome,
			Text: fmt.Sprintf("Done. Applied %d operation(s).", len(outcome.Executions))}, nil
	case plan.StatusFailed:
		if err := o.transition(conv, conversation.PhaseFailed); err != nil {
			return Reply{}, err
		}
		return Reply{Outcome: &outcome,
			Text: fmt.Sprintf("Execution failed: %s", outcome.Error)}, nil
	default:
		return Reply{Outcome: &outcome, Text: "Execution is still in progress."}, nil
	}
}

// Cancel rolls back the active plan and pauses the conversation.
func (o *Orchestrator) Cancel(ctx context.Context, conversationID string) (execute.RollbackResult, error) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return execute.RollbackResult{}, err
	}
	if conv.ActivePlanID == "" {
		return execute.RollbackResult{}, errors.Newf(errors.NotFound,
			"conversation %s has no active plan", conversationID)
	}
	p, err := o.store.GetPlan(ctx, conv.ActivePlanID)
	if err != nil {
		return execute.RollbackResult{}, err
	}

	res, rbErr := o.engine.Rollback(ctx, p)
	o.persistPlan(ctx, p)
	if conv.Phase == conversation.PhaseExecuting {
		if err := o.transition(conv, conversation.PhasePaused); err != nil {
			return res, err
		}
		if saveErr := o.store.SaveConversation(ctx, conv); saveErr != nil {
			o.logger.Warn("Failed to persist conversation", map[string]interface{}{
				"conversation": conv.ID,
				"error":        saveErr.Error(),
			})
		}
	}
	return res, rbErr
}

func (o *Orchestrator) cancelExecution(ctx context.Context, conv *conversation.Conversation) (Reply, error) {
	res, err := o.Cancel(ctx, conv.ID)
	if err != nil && !errors.HasCode(err, errors.RollbackIncomplete) {
		return Reply{}, err
	}
	text := fmt.Sprintf("Cancelled. Rolled back %d operation(s).", len(res.RolledBack))
	if len(res.Failed) > 0 {
		text += fmt.Sprintf(" %d operation(s) could not be rolled back: %s.",
			len(res.Failed), strings.Join(res.Failed, ", "))
	}
	return Reply{Text: text}, nil
}

// retrieveContext runs retrieval with a read-through cache keyed by project,
// scan, and request.
func (o *Orchestrator) retrieveContext(ctx context.Context, conversationID string, it *intent.Intent, message string) retrieval.Result {
	snap, err := o.snapshots.Load(ctx, o.proj)
	if err != nil {
		o.logger.Warn("Snapshot unavailable", map[string]interface{}{
			"project": o.proj.ID,
			"error":   err.Error(),
		})
		return retrieval.EmptyResult(err.Error())
	}

	key := store.CacheKey(o.proj.ID, snap.ScanID, message)
	if cached, hit, err := o.cache.Get(key); err == nil && hit {
		var result retrieval.Result
		if json.Unmarshal([]byte(cached), &result) == nil {
			return result
		}
	}

	result := o.retriever.Retrieve(ctx, o.proj, snap, it, message, retrieval.Options{
		IncludeDependencies: true,
	})
	events.Emit(o.emitter, events.ContextRetrieved, conversationID, map[string]interface{}{
		"chunks": len(result.Chunks),
		"files":  len(result.Files),
	})

	if encoded, err := json.Marshal(result); err == nil {
		if err := o.cache.Set(key, o.proj.ID, snap.ScanID, string(encoded), o.cfg.Cache.RouteTtlSeconds); err != nil {
			o.logger.Debug("Failed to cache retrieval result", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return result
}

const answerSystemPrompt = `You are a coding assistant answering a question about a codebase.
Answer from the provided code context. When the context does not cover the
question, say so rather than guessing. Be concise and reference file paths.`

func (o *Orchestrator) answerQuestion(ctx context.Context, message string, retrieved retrieval.Result) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", message)
	for _, c := range retrieved.Chunks {
		fmt.Fprintf(&sb, "\n=== %s (lines %d-%d) ===\n%s\n", c.Path, c.StartLine, c.EndLine, c.Content)
	}
	return o.completer.Complete(ctx, answerSystemPrompt, sb.String())
}

func (o *Orchestrator) historyFor(ctx context.Context, conversationID string) ([]string, error) {
	messages, err := o.store.ListMessages(ctx, conversationID, o.cfg.Intent.HistoryTurns)
	if err != nil {
		return nil, err
	}
	history := make([]string, 0, len(messages))
	for _, m := range messages {
		history = append(history, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return history, nil
}

func (o *Orchestrator) intentFor(ctx context.Context, intentID string) *intent.Intent {
	if intentID == "" {
		return nil
	}
	it, err := o.store.GetIntent(ctx, intentID)
	if err != nil {
		return nil
	}
	return it
}

// transition applies a phase change. An illegal transition is a programming
// error and propagates to the caller instead of being swallowed.
func (o *Orchestrator) transition(conv *conversation.Conversation, next conversation.Phase) error {
	if conv.Phase == next {
		return nil
	}
	if err := conv.TransitionTo(next); err != nil {
		o.logger.Error("Phase transition refused", map[string]interface{}{
			"conversation": conv.ID,
			"from":         string(conv.Phase),
			"to":           string(next),
		})
		return err
	}
	events.Emit(o.emitter, events.PhaseChanged, conv.ID, map[string]interface{}{
		"phase": string(next),
	})
	return nil
}

func (o *Orchestrator) persistPlan(ctx context.Context, p *plan.Plan) {
	if err := o.store.SavePlan(ctx, p); err != nil {
		o.logger.Warn("Failed to persist plan", map[string]interface{}{
			"plan":  p.ID,
			"error": err.Error(),
		})
	}
}

func clarificationText(it *intent.Intent) string {
	if len(it.ClarificationQuestions) == 0 {
		return "Could you give me more detail about what you want changed?"
	}
	var sb strings.Builder
	sb.WriteString("Before I plan this, a few questions:\n")
	for _, q := range it.ClarificationQuestions {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	return sb.String()
}

func planSummary(p *plan.Plan, validation plan.ValidationResult) string {
	assessment := plan.AssessRisk(p)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan: %s\n%s\n\nOperations (%d):\n", p.Title, p.Description, len(p.FileOperations))
	for i, op := range p.FileOperations {
		fmt.Fprintf(&sb, "%d. %s %s", i+1, op.Type, op.Path)
		if op.NewPath != "" {
			fmt.Fprintf(&sb, " -> %s", op.NewPath)
		}
		if op.Description != "" {
			fmt.Fprintf(&sb, " (%s)", op.Description)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nRisk: %s\n", assessment.Overall)
	for _, r := range assessment.Risks {
		fmt.Fprintf(&sb, "- [%s] %s\n", r.Level, r.Description)
	}
	for _, w := range validation.Warnings {
		fmt.Fprintf(&sb, "- warning: %s\n", w)
	}
	if assessment.RequiresManualSteps {
		fmt.Fprintf(&sb, "\nPrerequisites: %s\n", strings.Join(assessment.Prerequisites, "; "))
	}
	sb.WriteString("\nApprove this plan? (yes/no)")
	return sb.String()
}
