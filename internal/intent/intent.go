// Package intent turns free-text change requests into structured intent
// records via a single reasoning-service call, with a pure keyword heuristic
// for multi-intent warnings.
package intent

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies what the user is asking for.
type Type string

const (
	TypeFeatureRequest Type = "feature_request"
	TypeBugFix         Type = "bug_fix"
	TypeRefactor       Type = "refactor"
	TypeTestRequest    Type = "test_request"
	TypeUIComponent    Type = "ui_component"
	TypeQuestion       Type = "question"
	TypeUnknown        Type = "unknown"
)

// ParseType maps a string to a Type; anything unrecognized is Unknown.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeFeatureRequest, TypeBugFix, TypeRefactor, TypeTestRequest,
		TypeUIComponent, TypeQuestion:
		return Type(s)
	default:
		return TypeUnknown
	}
}

// Complexity is the classifier's effort estimate.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ParseComplexity maps a string to a Complexity, defaulting to medium.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return Complexity(s)
	default:
		return ComplexityMedium
	}
}

// Entities holds the concrete things the message mentioned.
type Entities struct {
	Files      []string `json:"files"`
	Components []string `json:"components"`
	Features   []string `json:"features"`
	Symbols    []string `json:"symbols"`
}

// Domain locates the request in the project's domain map.
type Domain struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Intent is the structured classification of one user request. Immutable
// once created; persisted for audit.
type Intent struct {
	ID                     string     `json:"id"`
	Type                   Type       `json:"type"`
	Confidence             float64    `json:"confidence"`
	Entities               Entities   `json:"entities"`
	Domain                 Domain     `json:"domain"`
	Complexity             Complexity `json:"complexity"`
	RequiresClarification  bool       `json:"requiresClarification"`
	ClarificationQuestions []string   `json:"clarificationQuestions,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// NewIntent creates an intent with a fresh ID and timestamp.
func NewIntent(t Type, confidence float64) *Intent {
	return &Intent{
		ID:         uuid.New().String(),
		Type:       t,
		Confidence: clamp01(confidence),
		CreatedAt:  time.Now().UTC(),
	}
}

// IsQuestion reports whether the intent is a pure question that should be
// answered directly without planning.
func (i *Intent) IsQuestion() bool {
	return i.Type == TypeQuestion
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
