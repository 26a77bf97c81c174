// Package audit implements the two-phase audit record lifecycle: a
// placeholder row created before generation starts, finalized once after
// the stream completes.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/server"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
)

// defaultPersistTimeout bounds the detached persistence context so a slow
// store cannot pin goroutines indefinitely.
const defaultPersistTimeout = 5 * time.Second

// FinalizeParams carries everything needed to overwrite a placeholder.
type FinalizeParams struct {
	Answer        string
	Status        domain.AuditStatus
	Usage         domain.Usage
	RetrievalCost decimal.Decimal
	ElapsedMs     int64
}

// Option configures the lifecycle manager.
type Option func(*Lifecycle)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithPersistTimeout overrides the detached persistence timeout.
func WithPersistTimeout(timeout time.Duration) Option {
	return func(l *Lifecycle) {
		l.persistTimeout = timeout
	}
}

// Lifecycle manages audit records across one request: CreatePlaceholder
// before generation, Finalize (fire-and-forget, at-most-once) after.
type Lifecycle struct {
	store          storage.AuditStore
	logger         *slog.Logger
	persistTimeout time.Duration

	mu        sync.Mutex
	finalized map[string]struct{}

	inflight sync.WaitGroup
}

// NewLifecycle creates a lifecycle manager over the given store.
func NewLifecycle(store storage.AuditStore, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:          store,
		logger:         slog.Default(),
		persistTimeout: defaultPersistTimeout,
		finalized:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreatePlaceholder synchronously creates the placeholder record and
// returns its id. Failure is non-fatal: generation proceeds without an
// audit id, and the failure is only logged.
func (l *Lifecycle) CreatePlaceholder(ctx context.Context, tenantID string, q domain.Question, retrieval domain.RetrievedContext) string {
	if l.store == nil {
		return ""
	}

	rec := domain.NewAuditRecord("aud_"+uuid.New().String(), tenantID, q, retrieval)

	if err := l.store.CreateAuditRecord(ctx, rec); err != nil {
		l.logger.Error("failed to create audit placeholder",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return ""
	}

	return rec.ID
}

// Finalize overwrites the placeholder fields asynchronously. It returns
// immediately; the persistence task runs on a detached context and is not
// tied to the consumer's lifetime. At most one finalize is applied per
// audit id; failures are logged, never raised, never retried.
func (l *Lifecycle) Finalize(ctx context.Context, auditID string, params FinalizeParams) {
	if l.store == nil || auditID == "" {
		return
	}

	l.mu.Lock()
	if _, done := l.finalized[auditID]; done {
		l.mu.Unlock()
		l.logger.Warn("duplicate finalize ignored", slog.String("audit_id", auditID))
		return
	}
	l.finalized[auditID] = struct{}{}
	l.mu.Unlock()

	requestID := server.GetRequestID(ctx)

	fields := storage.FinalizeFields{
		Answer:         params.Answer,
		Status:         params.Status,
		Usage:          params.Usage,
		TotalCost:      params.RetrievalCost.Add(params.Usage.Cost),
		ResponseTimeMs: params.ElapsedMs,
	}

	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()

		persistCtx, cancel := l.persistenceContext(requestID)
		defer cancel()

		if err := l.store.FinalizeAuditRecord(persistCtx, auditID, fields); err != nil {
			l.logger.Error("failed to finalize audit record",
				slog.String("request_id", requestID),
				slog.String("audit_id", auditID),
				slog.String("status", string(params.Status)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// RecordContentFilter records a policy refusal on the distinct audit path.
// No generation cost was incurred, so the placeholder is not finalized.
// Fire-and-forget like Finalize.
func (l *Lifecycle) RecordContentFilter(ctx context.Context, tenantID, auditID string, q domain.Question, detail string) {
	if l.store == nil {
		return
	}

	requestID := server.GetRequestID(ctx)

	ev := &domain.ContentFilterEvent{
		ID:        "cfe_" + uuid.New().String(),
		TenantID:  tenantID,
		SessionID: q.SessionID,
		AuditID:   auditID,
		Question:  q.Text,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()

		persistCtx, cancel := l.persistenceContext(requestID)
		defer cancel()

		if err := l.store.AppendContentFilterEvent(persistCtx, ev); err != nil {
			l.logger.Error("failed to record content filter event",
				slog.String("request_id", requestID),
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Drain blocks until in-flight persistence tasks have finished or ctx
// expires. Called on shutdown so audit writes are not lost.
func (l *Lifecycle) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persistenceContext decouples persistence from the request lifecycle so a
// client disconnect cannot drop an audit write, while still bounding it.
func (l *Lifecycle) persistenceContext(requestID string) (context.Context, context.CancelFunc) {
	base := context.Background()
	if requestID != "" {
		base = server.WithRequestID(base, requestID)
	}
	if l.persistTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, l.persistTimeout)
}
