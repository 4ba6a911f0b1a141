// Package conversation models the dialogue a request flows through and the
// phase state machine that governs what the orchestrator may do next.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"aide/internal/errors"
)

// Phase is the conversation's position in the pipeline.
type Phase string

const (
	PhaseIntake        Phase = "intake"
	PhaseClarification Phase = "clarification"
	PhaseDiscovery     Phase = "discovery"
	PhasePlanning      Phase = "planning"
	PhaseApproval      Phase = "approval"
	PhaseExecuting     Phase = "executing"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
	PhasePaused        Phase = "paused"
)

// phaseTransitions is the authoritative adjacency table. Completed and failed
// are terminal; paused can resume into executing or give up into failed.
var phaseTransitions = map[Phase][]Phase{
	PhaseIntake:        {PhaseClarification, PhaseDiscovery, PhaseCompleted},
	PhaseClarification: {PhaseIntake, PhaseDiscovery},
	PhaseDiscovery:     {PhasePlanning, PhaseFailed},
	PhasePlanning:      {PhaseApproval, PhaseDiscovery, PhaseFailed},
	PhaseApproval:      {PhaseExecuting, PhasePlanning, PhaseIntake},
	PhaseExecuting:     {PhaseApproval, PhaseCompleted, PhaseFailed, PhasePaused},
	PhasePaused:        {PhaseExecuting, PhaseFailed},
	PhaseCompleted:     {},
	PhaseFailed:        {},
}

// CanTransitionTo reports whether a phase change is legal.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the conversation can make no further progress.
func (p Phase) IsTerminal() bool {
	return len(phaseTransitions[p]) == 0
}

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the dialogue.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	IntentID       string    `json:"intentId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation is one dialogue about one unit of work in a project.
type Conversation struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	Title        string    `json:"title"`
	Phase        Phase     `json:"phase"`
	ActivePlanID string    `json:"activePlanId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// New creates a conversation in the intake phase.
func New(projectID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Phase:     PhaseIntake,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the conversation to the target phase, or returns an
// ILLEGAL_TRANSITION error leaving the conversation untouched.
func (c *Conversation) TransitionTo(next Phase) error {
	if !c.Phase.CanTransitionTo(next) {
		return errors.Newf(errors.IllegalTransition,
			"conversation %s cannot move from %s to %s", c.ID, c.Phase, next).
			WithDetail("from", string(c.Phase)).
			WithDetail("to", string(next))
	}
	c.Phase = next
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// NewMessage attaches a turn to the conversation.
func (c *Conversation) NewMessage(role Role, content string) *Message {
	return &Message{
		ID:             uuid.New().String(),
		ConversationID: c.ID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}
