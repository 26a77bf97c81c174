package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage/memory"
)

func testQuestion() domain.Question {
	return domain.Question{
		Text:      "Hoeveel vakantiedagen heb ik?",
		Language:  "nl",
		SessionID: "sess-1",
	}
}

func testRetrieval() domain.RetrievedContext {
	return domain.RetrievedContext{
		Text:      "Medewerkers hebben recht op 25 vakantiedagen.",
		Citations: []domain.Citation{{Source: "handbook.pdf", Page: "12"}},
		Tokens:    120,
		Cost:      decimal.RequireFromString("0.0003"),
	}
}

func drain(t *testing.T, l *Lifecycle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestCreatePlaceholder(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(store)

	id := l.CreatePlaceholder(context.Background(), "acme", testQuestion(), testRetrieval())
	if id == "" {
		t.Fatal("expected audit id")
	}

	rec, err := store.GetAuditRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.AuditStatusPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
	if rec.Answer != domain.AnswerPlaceholder {
		t.Errorf("answer = %q, want placeholder", rec.Answer)
	}
	if rec.TenantID != "acme" {
		t.Errorf("tenant = %q, want acme", rec.TenantID)
	}
	if rec.RetrievalTokens != 120 {
		t.Errorf("retrieval tokens = %d, want 120", rec.RetrievalTokens)
	}
}

type failingStore struct {
	storage.AuditStore
}

func (f *failingStore) CreateAuditRecord(ctx context.Context, rec *domain.AuditRecord) error {
	return errors.New("db unavailable")
}

func TestCreatePlaceholderFailureIsNonFatal(t *testing.T) {
	l := NewLifecycle(&failingStore{})

	id := l.CreatePlaceholder(context.Background(), "acme", testQuestion(), testRetrieval())
	if id != "" {
		t.Errorf("expected empty audit id on store failure, got %q", id)
	}
}

func TestFinalizeComputesTotalCost(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(store)
	ctx := context.Background()

	id := l.CreatePlaceholder(ctx, "acme", testQuestion(), testRetrieval())

	l.Finalize(ctx, id, FinalizeParams{
		Answer: "Je hebt recht op 25 vakantiedagen per jaar.",
		Status: domain.AuditStatusCompleted,
		Usage: domain.Usage{
			PromptTokens:     240,
			CompletionTokens: 16,
			TotalTokens:      256,
			Cost:             decimal.RequireFromString("0.0012"),
		},
		RetrievalCost: decimal.RequireFromString("0.0003"),
		ElapsedMs:     850,
	})
	drain(t, l)

	rec, err := store.GetAuditRecord(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.AuditStatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if !rec.TotalCost.Equal(decimal.RequireFromString("0.0015")) {
		t.Errorf("total cost = %s, want 0.0015", rec.TotalCost)
	}
	if rec.ResponseTimeMs != 850 {
		t.Errorf("response time = %d, want 850", rec.ResponseTimeMs)
	}
}

func TestFinalizeAtMostOnce(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(store)
	ctx := context.Background()

	id := l.CreatePlaceholder(ctx, "acme", testQuestion(), testRetrieval())

	l.Finalize(ctx, id, FinalizeParams{
		Answer: "first",
		Status: domain.AuditStatusCompleted,
	})
	l.Finalize(ctx, id, FinalizeParams{
		Answer: "second",
		Status: domain.AuditStatusFailed,
	})
	drain(t, l)

	rec, err := store.GetAuditRecord(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Answer != "first" {
		t.Errorf("answer = %q, want first finalize to win", rec.Answer)
	}
	if rec.Status != domain.AuditStatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
}

func TestFinalizeWithoutAuditID(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(store)

	// Placeholder creation failed earlier; finalize must be a no-op.
	l.Finalize(context.Background(), "", FinalizeParams{Answer: "x", Status: domain.AuditStatusCompleted})
	drain(t, l)

	recs, err := store.ListAuditRecords(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestRecordContentFilter(t *testing.T) {
	store := memory.New()
	l := NewLifecycle(store)
	ctx := context.Background()

	id := l.CreatePlaceholder(ctx, "acme", testQuestion(), testRetrieval())
	l.RecordContentFilter(ctx, "acme", id, testQuestion(), "content_filter: request blocked")
	drain(t, l)

	events, err := store.ListContentFilterEvents(ctx, storage.ListOptions{TenantID: "acme"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].AuditID != id {
		t.Errorf("audit id = %q, want %q", events[0].AuditID, id)
	}

	// The placeholder stays pending; content filters never finalize.
	rec, err := store.GetAuditRecord(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.AuditStatusPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
}
