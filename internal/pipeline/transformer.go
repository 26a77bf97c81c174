package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/audit"
	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/server"
)

// PriceFunc converts an estimated token count pair into a generation cost.
// Used only when the upstream stream ends without reporting usage.
type PriceFunc func(promptTokens, completionTokens int) decimal.Decimal

// Request bundles everything the transformer needs for one answer stream.
type Request struct {
	TenantID     string
	Question     domain.Question
	Retrieval    domain.RetrievedContext
	SystemPrompt string
	AuditID      string
	Events       <-chan domain.GenerationEvent
	Clock        domain.RequestClock
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithEstimator sets the token estimator used when usage must be
// reconstructed instead of reported.
func WithEstimator(est domain.TokenEstimator) Option {
	return func(t *Transformer) {
		t.estimator = est
	}
}

// WithPriceFunc sets the cost function for estimated usage.
func WithPriceFunc(fn PriceFunc) Option {
	return func(t *Transformer) {
		t.price = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// Transformer consumes generation events and produces the outward answer
// stream. It owns the terminal bookkeeping: every stream it starts ends in
// exactly one finalize, content-filter record, or abort.
type Transformer struct {
	lifecycle *audit.Lifecycle
	estimator domain.TokenEstimator
	price     PriceFunc
	logger    *slog.Logger
}

// New creates a Transformer bound to the given audit lifecycle.
func New(lifecycle *audit.Lifecycle, opts ...Option) *Transformer {
	t := &Transformer{
		lifecycle: lifecycle,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run starts transforming req.Events and returns the outward event
// channel. The channel is unbuffered so a slow consumer backpressures the
// upstream read, and it is closed after the terminal event. Cancelling ctx
// abandons the stream; the generator observes the same cancellation and
// stops producing.
func (t *Transformer) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go t.run(ctx, req, out)
	return out
}

func (t *Transformer) run(ctx context.Context, req Request, out chan<- Event) {
	defer close(out)

	var answer strings.Builder

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Consumer went away. The partial answer still gets audited, with
	// reconstructed usage since the upstream never reported any.
	abort := func(reported *domain.Usage) {
		t.logger.Info("answer stream aborted by consumer",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("audit_id", req.AuditID),
			slog.Int("partial_bytes", answer.Len()),
		)
		usage := t.resolveUsage(reported, req, answer.String())
		t.finalize(ctx, req, answer.String(), domain.AuditStatusAborted, usage)
	}

	if !send(metadataEvent(req)) {
		abort(nil)
		return
	}

	var reported *domain.Usage

	for ev := range req.Events {
		switch {
		case ev.Err != nil:
			perr := domain.Classify(ev.Err)

			if perr.Kind == domain.ErrorKindContentFiltered {
				// Policy refusals take the distinct audit path and
				// deliberately skip finalization.
				t.lifecycle.RecordContentFilter(ctx, req.TenantID, req.AuditID, req.Question, perr.Error())
				send(errorEvent(perr))
				return
			}

			t.logger.Error("generation stream failed",
				slog.String("request_id", server.GetRequestID(ctx)),
				slog.String("audit_id", req.AuditID),
				slog.String("kind", string(perr.Kind)),
				slog.String("error", perr.Error()),
			)

			send(errorEvent(perr))
			usage := t.resolveUsage(nil, req, answer.String())
			t.finalize(ctx, req, answer.String(), domain.AuditStatusFailed, usage)
			return

		case ev.Usage != nil:
			reported = ev.Usage

		case ev.ContentDelta != "":
			answer.WriteString(ev.ContentDelta)
			if !send(contentEvent(ev.ContentDelta)) {
				abort(reported)
				return
			}
		}
	}

	usage := t.resolveUsage(reported, req, answer.String())
	if !send(doneEvent()) {
		abort(reported)
		return
	}
	t.finalize(ctx, req, answer.String(), domain.AuditStatusCompleted, usage)
}

func (t *Transformer) finalize(ctx context.Context, req Request, answer string, status domain.AuditStatus, usage domain.Usage) {
	if t.lifecycle == nil {
		return
	}
	t.lifecycle.Finalize(ctx, req.AuditID, audit.FinalizeParams{
		Answer:        answer,
		Status:        status,
		Usage:         usage,
		RetrievalCost: req.Retrieval.Cost,
		ElapsedMs:     req.Clock.ElapsedMs(),
	})
}

// resolveUsage prefers upstream-reported usage and falls back to a local
// token estimate when the stream ended without one.
func (t *Transformer) resolveUsage(reported *domain.Usage, req Request, answer string) domain.Usage {
	if reported != nil {
		return *reported
	}

	promptTokens := t.estimateTokens(req.SystemPrompt) + t.estimateTokens(req.Question.Text)
	for _, msg := range req.Question.History {
		promptTokens += t.estimateTokens(msg.Content)
	}
	completionTokens := t.estimateTokens(answer)

	usage := domain.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
	if t.price != nil {
		usage.Cost = t.price(promptTokens, completionTokens)
	}
	return usage
}

func (t *Transformer) estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if t.estimator != nil {
		return t.estimator.EstimateTokens(text)
	}
	// Rough heuristic when no tokenizer is configured.
	return (len(text) + 3) / 4
}
