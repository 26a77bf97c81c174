package openai

import (
	"context"
	"errors"
	"time"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

// GeneratorOption configures the generator.
type GeneratorOption func(*Generator)

// WithClientOptions passes options through to the underlying HTTP client.
func WithClientOptions(opts ...ClientOption) GeneratorOption {
	return func(g *Generator) {
		g.clientOpts = append(g.clientOpts, opts...)
	}
}

// WithPricing replaces the default pricing table.
func WithPricing(p *Pricing) GeneratorOption {
	return func(g *Generator) {
		g.pricing = p
	}
}

// WithMaxTokens caps the generated answer length.
func WithMaxTokens(max int) GeneratorOption {
	return func(g *Generator) {
		g.maxTokens = max
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float32) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temp
	}
}

// WithTimeout bounds a whole streaming generation, first byte to last.
func WithTimeout(timeout time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.timeout = timeout
	}
}

// Generator implements domain.Generator against an OpenAI-compatible API.
type Generator struct {
	client      *client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	pricing     *Pricing
	clientOpts  []ClientOption
}

var _ domain.Generator = (*Generator)(nil)

// New creates a generator for the given model.
func New(apiKey, model string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:   model,
		pricing: NewPricing(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client = newClient(apiKey, g.clientOpts...)
	return g
}

// Stream starts a single-pass generation. The returned channel observes the
// GenerationEvent ordering contract: deltas, then usage + close on normal
// termination, or one error event.
func (g *Generator) Stream(ctx context.Context, systemPrompt string, q domain.Question) (<-chan domain.GenerationEvent, error) {
	req := &chatCompletionRequest{
		Model:    g.model,
		Messages: buildMessages(systemPrompt, q),
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}
	if g.temperature > 0 {
		req.Temperature = &g.temperature
	}

	// The request context bounds the HTTP exchange and releases the stream
	// reader when pump stops consuming. Sends to our consumer watch the
	// parent context, so a timeout surfaces as an error event instead of a
	// silent close.
	var reqCtx context.Context
	var cancel context.CancelFunc
	if g.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, g.timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}

	stream, err := g.client.streamChatCompletion(reqCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan domain.GenerationEvent)
	go func() {
		defer cancel()
		g.pump(ctx, stream, out)
	}()
	return out, nil
}

// pump converts wire chunks into generation events, enforcing the ordering
// contract and pricing the final usage summary.
func (g *Generator) pump(ctx context.Context, stream <-chan streamResult, out chan<- domain.GenerationEvent) {
	defer close(out)

	var usage *domain.Usage

	for result := range stream {
		if result.err != nil {
			send(ctx, out, domain.GenerationEvent{Err: result.err})
			return
		}

		chunk := result.chunk
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]

			if choice.FinishReason != nil && *choice.FinishReason == finishReasonContentFilter {
				send(ctx, out, domain.GenerationEvent{
					Err: domain.ErrContentFiltered(errors.New("generation stopped by provider content filter")),
				})
				return
			}

			if choice.Delta.Content != "" {
				if !send(ctx, out, domain.GenerationEvent{ContentDelta: choice.Delta.Content}) {
					return
				}
			}
		}

		// The usage chunk arrives last; hold it until the stream closes so
		// the terminal event is emitted exactly once.
		if chunk.Usage != nil {
			usage = &domain.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
			g.pricing.Price(g.model, usage)
		}
	}

	if usage != nil {
		send(ctx, out, domain.GenerationEvent{Usage: usage})
	}
}

// send delivers an event unless the consumer is gone.
func send(ctx context.Context, out chan<- domain.GenerationEvent, ev domain.GenerationEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func buildMessages(systemPrompt string, q domain.Question) []chatMessage {
	messages := make([]chatMessage, 0, len(q.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range q.History {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: q.Text})
	return messages
}
