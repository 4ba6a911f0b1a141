package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"aide/internal/intent"
	"aide/internal/logging"
	"aide/internal/project"
	"aide/internal/provider"
	"aide/internal/retrieval"
)

// PlanStore persists plans. Implemented by the sqlite store.
type PlanStore interface {
	SavePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
}

// Builder turns classified intents plus retrieved context into plans.
type Builder struct {
	completer provider.Completer
	store     PlanStore
	logger    *logging.Logger
}

func NewBuilder(completer provider.Completer, store PlanStore, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Silent()
	}
	return &Builder{completer: completer, store: store, logger: logger}
}

const planSystemPrompt = `You are a senior engineer drafting an implementation plan for a code change.
Respond with a single JSON object and nothing else:
{
  "title": "short imperative title",
  "description": "what the change accomplishes and how",
  "fileOperations": [
    {
      "type": "create|modify|delete|rename|move",
      "path": "relative/path",
      "newPath": "only for rename/move",
      "description": "what happens to this file",
      "templateContent": "full file content for create operations",
      "changes": [
        {
          "section": "function or region name",
          "changeType": "add|remove|replace",
          "before": "existing code for replace",
          "after": "new code",
          "explanation": "why"
        }
      ],
      "priority": 1,
      "dependencies": ["paths of operations that must run first"]
    }
  ],
  "risks": [{"level": "low|medium|high", "description": "...", "mitigation": "..."}],
  "prerequisites": ["manual steps needed before execution"],
  "estimatedComplexity": "low|medium|high"
}
Order fileOperations so dependencies come before dependents. Only touch files
that need to change.`

// wire shapes for strict decoding of the provider response.
type planWire struct {
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	FileOperations      []fileOperationWire `json:"fileOperations"`
	Risks               []riskWire          `json:"risks"`
	Prerequisites       []string            `json:"prerequisites"`
	EstimatedComplexity string              `json:"estimatedComplexity"`
}

type fileOperationWire struct {
	Type            string          `json:"type"`
	Path            string          `json:"path"`
	NewPath         string          `json:"newPath"`
	Description     string          `json:"description"`
	TemplateContent string          `json:"templateContent"`
	Changes         []PlannedChange `json:"changes"`
	Priority        int             `json:"priority"`
	Dependencies    []string        `json:"dependencies"`
}

type riskWire struct {
	Level       string `json:"level"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// Generate builds a plan for the intent. It never returns an error: provider
// or decode failures produce a draft plan carrying GenerationError so the
// conversation can surface the failure and retry.
func (b *Builder) Generate(ctx context.Context, proj *project.Project, it *intent.Intent, retrieved retrieval.Result, request string) *Plan {
	p := NewPlan(proj.ID, "")
	if it != nil {
		p.IntentID = it.ID
	}

	prompt := b.buildPrompt(proj, it, retrieved, request, "")
	raw, err := b.completer.Complete(ctx, planSystemPrompt, prompt)
	if err != nil {
		b.logger.Warn("plan generation failed", map[string]interface{}{
			"project": proj.ID,
			"error":   err.Error(),
		})
		p.Title = "Plan generation failed"
		p.GenerationError = err.Error()
		b.persist(ctx, p)
		return p
	}

	if err := b.decodeInto(p, raw); err != nil {
		b.logger.Warn("plan response unusable", map[string]interface{}{
			"project": proj.ID,
			"error":   err.Error(),
		})
		p.Title = "Plan generation failed"
		p.GenerationError = err.Error()
	}
	b.persist(ctx, p)
	return p
}

// Refine produces a new draft plan incorporating reviewer feedback on a
// rejected or draft plan. The original is left untouched.
func (b *Builder) Refine(ctx context.Context, proj *project.Project, original *Plan, retrieved retrieval.Result, feedback string) *Plan {
	p := NewPlan(proj.ID, original.Title)
	p.IntentID = original.IntentID
	p.ConversationID = original.ConversationID
	p.RefinedFromID = original.ID

	prompt := b.buildRefinePrompt(proj, original, retrieved, feedback)
	raw, err := b.completer.Complete(ctx, planSystemPrompt, prompt)
	if err != nil {
		b.logger.Warn("plan refinement failed", map[string]interface{}{
			"plan":  original.ID,
			"error": err.Error(),
		})
		p.GenerationError = err.Error()
		b.persist(ctx, p)
		return p
	}
	if err := b.decodeInto(p, raw); err != nil {
		p.GenerationError = err.Error()
	}
	b.persist(ctx, p)
	return p
}

func (b *Builder) decodeInto(p *Plan, raw string) error {
	payload, err := provider.ExtractJSON(raw)
	if err != nil {
		return fmt.Errorf("no JSON object in plan response: %w", err)
	}
	var wire planWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return fmt.Errorf("decode plan response: %w", err)
	}
	if len(wire.FileOperations) == 0 {
		return fmt.Errorf("plan response contains no file operations")
	}

	ops := make([]FileOperation, 0, len(wire.FileOperations))
	for _, w := range wire.FileOperations {
		opType, ok := ParseOperationType(w.Type)
		if !ok {
			return fmt.Errorf("unknown operation type %q for %s", w.Type, w.Path)
		}
		op := FileOperation{
			Type:            opType,
			Path:            strings.TrimSpace(w.Path),
			NewPath:         strings.TrimSpace(w.NewPath),
			Description:     w.Description,
			TemplateContent: w.TemplateContent,
			Changes:         w.Changes,
			Priority:        w.Priority,
			Dependencies:    w.Dependencies,
		}
		if err := op.Validate(); err != nil {
			return fmt.Errorf("invalid operation: %w", err)
		}
		ops = append(ops, op)
	}

	p.Title = strings.TrimSpace(wire.Title)
	if p.Title == "" {
		p.Title = "Untitled plan"
	}
	p.Description = wire.Description
	p.FileOperations = ops
	p.EstimatedFilesAffected = countAffectedFiles(ops)
	p.EstimatedComplexity = wire.EstimatedComplexity
	p.Prerequisites = wire.Prerequisites
	for _, r := range wire.Risks {
		p.Risks = append(p.Risks, Risk{
			Level:       ParseRiskLevel(r.Level),
			Description: r.Description,
			Mitigation:  r.Mitigation,
		})
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (b *Builder) buildPrompt(proj *project.Project, it *intent.Intent, retrieved retrieval.Result, request, feedback string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", proj.Name)
	if len(proj.TechStack) > 0 {
		fmt.Fprintf(&sb, "Tech stack: %s\n", strings.Join(proj.TechStack, ", "))
	}
	fmt.Fprintf(&sb, "\nRequest: %s\n", request)
	if it != nil {
		fmt.Fprintf(&sb, "Intent: %s (%s complexity, domain %s)\n", it.Type, it.Complexity, it.Domain.Primary)
		if len(it.Entities.Files) > 0 {
			fmt.Fprintf(&sb, "Mentioned files: %s\n", strings.Join(it.Entities.Files, ", "))
		}
	}
	writeContext(&sb, retrieved)
	if feedback != "" {
		fmt.Fprintf(&sb, "\nReviewer feedback to address:\n%s\n", feedback)
	}
	return sb.String()
}

func (b *Builder) buildRefinePrompt(proj *project.Project, original *Plan, retrieved retrieval.Result, feedback string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", proj.Name)
	sb.WriteString("\nThe previous plan was rejected. Produce a revised plan.\n")
	fmt.Fprintf(&sb, "\nPrevious plan: %s\n%s\n", original.Title, original.Description)
	for _, op := range original.FileOperations {
		fmt.Fprintf(&sb, "- %s %s: %s\n", op.Type, op.Path, op.Description)
	}
	fmt.Fprintf(&sb, "\nReviewer feedback:\n%s\n", feedback)
	writeContext(&sb, retrieved)
	return sb.String()
}

func writeContext(sb *strings.Builder, retrieved retrieval.Result) {
	if len(retrieved.Chunks) == 0 {
		return
	}
	sb.WriteString("\nRelevant code:\n")
	for _, c := range retrieved.Chunks {
		fmt.Fprintf(sb, "\n=== %s (lines %d-%d) ===\n%s\n", c.Path, c.StartLine, c.EndLine, c.Content)
	}
	if len(retrieved.EntryPoints) > 0 {
		fmt.Fprintf(sb, "\nEntry points: %s\n", strings.Join(retrieved.EntryPoints, ", "))
	}
}

func (b *Builder) persist(ctx context.Context, p *Plan) {
	if b.store == nil {
		return
	}
	if err := b.store.SavePlan(ctx, p); err != nil {
		b.logger.Warn("failed to persist plan", map[string]interface{}{
			"plan":  p.ID,
			"error": err.Error(),
		})
	}
}

func countAffectedFiles(ops []FileOperation) int {
	seen := make(map[string]bool)
	for _, op := range ops {
		seen[op.Path] = true
		if op.NewPath != "" {
			seen[op.NewPath] = true
		}
	}
	return len(seen)
}
