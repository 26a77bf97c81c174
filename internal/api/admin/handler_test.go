package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage/memory"
)

func seedRecord(t *testing.T, store *memory.Store, id, tenantID string, created time.Time) {
	t.Helper()
	rec := domain.NewAuditRecord(id, tenantID, domain.Question{
		Text:      "Hoeveel vakantiedagen heb ik?",
		Language:  "nl",
		SessionID: "sess-1",
	}, domain.RetrievedContext{
		Tokens: 120,
		Cost:   decimal.RequireFromString("0.0003"),
	})
	rec.CreatedAt = created
	if err := store.CreateAuditRecord(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newTestServer(t *testing.T, store *memory.Store) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(store, nil).Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestListAuditRecordsFiltersByTenant(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	seedRecord(t, store, "aud-1", "acme", now.Add(-2*time.Minute))
	seedRecord(t, store, "aud-2", "acme", now.Add(-time.Minute))
	seedRecord(t, store, "aud-3", "globex", now)

	ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/admin/audit?tenant=acme")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Records []domain.AuditRecord `json:"records"`
		Count   int                  `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	// Newest first.
	if body.Records[0].ID != "aud-2" {
		t.Errorf("first record = %q, want aud-2", body.Records[0].ID)
	}
}

func TestListAuditRecordsPagination(t *testing.T) {
	store := memory.New()
	now := time.Now().UTC()
	for i, id := range []string{"aud-1", "aud-2", "aud-3"} {
		seedRecord(t, store, id, "acme", now.Add(time.Duration(i)*time.Minute))
	}

	ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/admin/audit?limit=1&offset=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Records []domain.AuditRecord `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(body.Records))
	}
	if body.Records[0].ID != "aud-2" {
		t.Errorf("record = %q, want aud-2", body.Records[0].ID)
	}
}

func TestGetAuditRecord(t *testing.T) {
	store := memory.New()
	seedRecord(t, store, "aud-1", "acme", time.Now().UTC())

	ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/admin/audit/aud-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var rec domain.AuditRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID != "aud-1" || rec.Status != domain.AuditStatusPending {
		t.Errorf("record = %q/%q", rec.ID, rec.Status)
	}
}

func TestGetAuditRecordNotFound(t *testing.T) {
	ts := newTestServer(t, memory.New())

	resp, err := http.Get(ts.URL + "/admin/audit/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListContentFilterEvents(t *testing.T) {
	store := memory.New()
	if err := store.AppendContentFilterEvent(context.Background(), &domain.ContentFilterEvent{
		ID:        "cfe-1",
		TenantID:  "acme",
		AuditID:   "aud-1",
		Question:  "iets ongepast",
		Detail:    "content_filter",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/admin/content-filter?tenant=acme")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Events []domain.ContentFilterEvent `json:"events"`
		Count  int                         `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Events[0].ID != "cfe-1" {
		t.Errorf("unexpected events: %+v", body.Events)
	}
}
