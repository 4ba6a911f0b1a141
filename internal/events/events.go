// Package events carries progress notifications out of the pipeline without
// coupling it to any delivery transport.
package events

import (
	"sync"
	"time"
)

// Type names one pipeline event.
type Type string

const (
	IntentClassified    Type = "intent_classified"
	ClarificationNeeded Type = "clarification_needed"
	ContextRetrieved    Type = "context_retrieved"
	PlanDrafted         Type = "plan_drafted"
	PlanApproved        Type = "plan_approved"
	PlanRejected        Type = "plan_rejected"
	FileStarted         Type = "file_started"
	FileCompleted       Type = "file_completed"
	FileFailed          Type = "file_failed"
	FileSkipped         Type = "file_skipped"
	ApprovalRequired    Type = "approval_required"
	ExecutionFinished   Type = "execution_finished"
	RollbackStarted     Type = "rollback_started"
	RollbackFinished    Type = "rollback_finished"
	PhaseChanged        Type = "phase_changed"
	AnswerGiven         Type = "answer"
	ErrorRaised         Type = "error"
)

// Event is one notification. SubjectID identifies the conversation, plan, or
// file the event concerns.
type Event struct {
	Type      Type                   `json:"type"`
	SubjectID string                 `json:"subjectId"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Emitter receives pipeline events. Implementations must tolerate concurrent
// calls and must not block the caller for long.
type Emitter interface {
	Emit(e Event)
}

// Discard is an Emitter that drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// Emit stamps and forwards an event, tolerating a nil emitter.
func Emit(em Emitter, t Type, subjectID string, data map[string]interface{}) {
	if em == nil {
		return
	}
	em.Emit(Event{Type: t, SubjectID: subjectID, Data: data, Timestamp: time.Now().UTC()})
}

// Buffer accumulates events in order for later draining. Safe for concurrent
// emitters; useful for tests and for request-scoped progress reporting.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// Drain returns the buffered events in emission order and resets the buffer.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// ChannelSink forwards events to a channel, dropping when the receiver lags
// so emitters never stall the pipeline.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close closes the channel. Call only after all emitters have stopped.
func (s *ChannelSink) Close() {
	close(s.ch)
}
