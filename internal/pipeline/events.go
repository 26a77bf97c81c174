// Package pipeline turns a raw generation event stream into the outward
// answer stream delivered to clients, and drives audit finalization as a
// side effect of stream termination.
package pipeline

import (
	"time"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

// EventType discriminates outward stream events.
type EventType string

const (
	// EventTypeMetadata is emitted exactly once, before any content.
	EventTypeMetadata EventType = "metadata"
	// EventTypeContent carries one incremental answer fragment.
	EventTypeContent EventType = "content"
	// EventTypeDone terminates a successful stream.
	EventTypeDone EventType = "done"
	// EventTypeError terminates a failed stream with a user-safe message.
	EventTypeError EventType = "error"
)

// Event is one outward stream event. Exactly one terminal event (done or
// error) closes every stream; metadata always precedes content.
type Event struct {
	Type EventType `json:"type"`

	// Metadata fields.
	SessionID       string            `json:"session_id,omitempty"`
	AuditID         string            `json:"audit_id,omitempty"`
	StartedAt       string            `json:"started_at,omitempty"`
	Citations       []domain.Citation `json:"citations,omitempty"`
	RetrievalTokens int               `json:"retrieval_tokens,omitempty"`
	RetrievalCost   string            `json:"retrieval_cost,omitempty"`

	// Content fields.
	Text string `json:"text,omitempty"`

	// Error fields.
	Message string `json:"message,omitempty"`
}

func metadataEvent(req Request) Event {
	return Event{
		Type:            EventTypeMetadata,
		SessionID:       req.Question.SessionID,
		AuditID:         req.AuditID,
		StartedAt:       req.Clock.StartedAt.UTC().Format(time.RFC3339Nano),
		Citations:       req.Retrieval.Citations,
		RetrievalTokens: req.Retrieval.Tokens,
		RetrievalCost:   req.Retrieval.Cost.String(),
	}
}

func contentEvent(text string) Event {
	return Event{Type: EventTypeContent, Text: text}
}

func doneEvent() Event {
	return Event{Type: EventTypeDone}
}

func errorEvent(perr *domain.PipelineError) Event {
	return Event{Type: EventTypeError, Message: perr.UserMessage()}
}
