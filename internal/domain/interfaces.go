package domain

import (
	"context"
)

// ContextRetriever looks up grounding context for a question.
type ContextRetriever interface {
	// Retrieve returns ranked context for the question. An empty context
	// is a valid result; errors are classified by the caller.
	Retrieve(ctx context.Context, q Question) (*RetrievedContext, error)
}

// Generator produces an answer stream for an assembled prompt.
type Generator interface {
	// Stream starts a single-pass generation and returns a channel of
	// events. The channel MUST be closed by the generator when done, and
	// the generator MUST stop producing promptly when ctx is cancelled.
	Stream(ctx context.Context, systemPrompt string, q Question) (<-chan GenerationEvent, error)
}

// TokenEstimator approximates token counts for text when no upstream usage
// summary is available.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) int
}
