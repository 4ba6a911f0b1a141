package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aide/internal/config"
	"aide/internal/logging"
	"aide/internal/project"
	"aide/internal/provider"
)

// AuditStore persists intents for the audit trail.
type AuditStore interface {
	SaveIntent(ctx context.Context, projectID string, it *Intent) error
}

// Classifier turns a message into an Intent with one reasoning-service call.
type Classifier struct {
	completer provider.Completer
	store     AuditStore
	cfg       config.IntentConfig
	logger    *logging.Logger
}

// NewClassifier creates a classifier. store may be nil in tests.
func NewClassifier(completer provider.Completer, store AuditStore, cfg config.IntentConfig, logger *logging.Logger) *Classifier {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	return &Classifier{completer: completer, store: store, cfg: cfg, logger: logger}
}

const classifySystemPrompt = `You are the intent classifier of a coding assistant.
Respond with a single JSON object and nothing else:
{
  "type": "feature_request|bug_fix|refactor|test_request|ui_component|question",
  "confidence": 0.0-1.0,
  "entities": {"files": [], "components": [], "features": [], "symbols": []},
  "domain": {"primary": "", "secondary": []},
  "complexity": "low|medium|high",
  "requiresClarification": false,
  "clarificationQuestions": []
}`

// Analyze classifies a message against a project. It never fails the caller:
// provider or parse failures produce a low-confidence unknown intent with a
// generated clarification question. The resulting intent is persisted for
// audit when a store is configured.
func (c *Classifier) Analyze(ctx context.Context, proj *project.Project, message string, history []string) *Intent {
	it := c.classify(ctx, proj, message, history)

	if c.store != nil {
		if err := c.store.SaveIntent(ctx, proj.ID, it); err != nil {
			c.logger.Warn("Failed to persist intent", map[string]interface{}{
				"intentId": it.ID,
				"error":    err.Error(),
			})
		}
	}
	return it
}

func (c *Classifier) classify(ctx context.Context, proj *project.Project, message string, history []string) *Intent {
	userContent := c.buildPrompt(proj, message, history)

	raw, err := c.completer.Complete(ctx, classifySystemPrompt, userContent)
	if err != nil {
		c.logger.Warn("Intent classification call failed", map[string]interface{}{
			"error": err.Error(),
		})
		return fallbackIntent(message)
	}

	payload, err := provider.ExtractJSON(raw)
	if err != nil {
		c.logger.Warn("Intent response unparseable", map[string]interface{}{
			"error":   err.Error(),
			"payload": provider.Truncate(raw, 300),
		})
		return fallbackIntent(message)
	}

	var wire struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
		Entities   struct {
			Files      []string `json:"files"`
			Components []string `json:"components"`
			Features   []string `json:"features"`
			Symbols    []string `json:"symbols"`
		} `json:"entities"`
		Domain struct {
			Primary   string   `json:"primary"`
			Secondary []string `json:"secondary"`
		} `json:"domain"`
		Complexity             string   `json:"complexity"`
		RequiresClarification  bool     `json:"requiresClarification"`
		ClarificationQuestions []string `json:"clarificationQuestions"`
	}
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		c.logger.Warn("Intent payload failed strict decode", map[string]interface{}{
			"error":   err.Error(),
			"payload": provider.Truncate(payload, 300),
		})
		return fallbackIntent(message)
	}

	// Never trust the external payload's shape: unknown enum strings fall
	// back to safe members and confidence is clamped.
	it := NewIntent(ParseType(wire.Type), wire.Confidence)
	it.Entities = Entities{
		Files:      wire.Entities.Files,
		Components: wire.Entities.Components,
		Features:   wire.Entities.Features,
		Symbols:    wire.Entities.Symbols,
	}
	it.Domain = Domain{Primary: wire.Domain.Primary, Secondary: wire.Domain.Secondary}
	it.Complexity = ParseComplexity(wire.Complexity)
	it.RequiresClarification = wire.RequiresClarification
	it.ClarificationQuestions = wire.ClarificationQuestions
	return it
}

func (c *Classifier) buildPrompt(proj *project.Project, message string, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", proj.Name)
	if len(proj.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(proj.TechStack, ", "))
	}
	if domains := proj.Domains(); len(domains) > 0 {
		fmt.Fprintf(&b, "Known domains: %s\n", strings.Join(domains, ", "))
	}

	if len(history) > 0 {
		start := len(history) - c.cfg.HistoryTurns
		if start < 0 {
			start = 0
		}
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&b, "- %s\n", turn)
		}
	}

	fmt.Fprintf(&b, "\nRequest: %s\n", message)
	return b.String()
}

// fallbackIntent is the conservative default when classification fails.
func fallbackIntent(message string) *Intent {
	it := NewIntent(TypeUnknown, 0.1)
	it.RequiresClarification = true
	it.ClarificationQuestions = []string{generateClarification(message)}
	return it
}

func generateClarification(message string) string {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) > 60 {
		trimmed = trimmed[:60] + "..."
	}
	return fmt.Sprintf(
		"I couldn't confidently classify %q. Could you describe what you want changed, and in which part of the codebase?",
		trimmed)
}

// NeedsClarification reports whether the intent should send the conversation
// to the clarification phase before any retrieval or planning happens.
func (c *Classifier) NeedsClarification(it *Intent) bool {
	if it.RequiresClarification {
		return true
	}
	if it.Confidence < c.cfg.ConfidenceThreshold {
		return true
	}
	return it.Type == TypeUnknown
}
