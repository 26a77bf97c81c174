package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message represents a single turn in the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is the immutable input to the answer pipeline.
type Question struct {
	// Text is the user's question.
	Text string `json:"text"`

	// History is the ordered conversation so far, oldest first.
	History []Message `json:"history,omitempty"`

	// Language is the requested response language code (e.g. "nl", "en").
	Language string `json:"language,omitempty"`

	// SessionID is an opaque caller-supplied session identifier. May be empty.
	SessionID string `json:"session_id,omitempty"`
}

// Citation references a source passage used to ground an answer.
type Citation struct {
	// Source identifies the document the passage came from.
	Source string `json:"source"`

	// Page is the page or location within the source.
	Page string `json:"page,omitempty"`

	// Snippet is the passage text that was matched.
	Snippet string `json:"snippet,omitempty"`
}

// RetrievedContext is the result of a vector-context lookup for a question.
type RetrievedContext struct {
	// Text is the concatenated context passed to the prompt assembler.
	// Empty is valid: the assistant answers from general instructions only.
	Text string `json:"context"`

	// Citations lists the grounding passages, ranked.
	Citations []Citation `json:"citations"`

	// Tokens is the token count consumed by the retrieval query.
	Tokens int `json:"tokens"`

	// Cost is the monetary cost of the retrieval query.
	Cost decimal.Decimal `json:"cost"`
}

// Usage represents token usage and cost for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Cost is the generation cost derived from the token counts.
	Cost decimal.Decimal `json:"cost"`

	// Estimated is true when the counts were reconstructed locally
	// (e.g. after an aborted stream) rather than reported upstream.
	Estimated bool `json:"estimated,omitempty"`
}

// GenerationEvent is one element of the raw generation stream.
//
// The producing adapter guarantees strict ordering on the channel: zero or
// more content deltas, then either a single usage event followed by channel
// close (normal termination) or a single error event (failure). The stream
// is single pass and not restartable.
type GenerationEvent struct {
	// ContentDelta is a fragment of answer text.
	ContentDelta string

	// Usage carries the final token/cost summary, present on the last
	// event of a normally terminating stream.
	Usage *Usage

	// Err signals upstream failure and terminates the stream.
	Err error
}

// RequestClock captures the wall-clock start of a pipeline request so that
// response time can be computed at finalization.
type RequestClock struct {
	StartedAt time.Time
}

// ElapsedMs returns whole milliseconds since the request started.
func (c RequestClock) ElapsedMs() int64 {
	return time.Since(c.StartedAt).Milliseconds()
}
