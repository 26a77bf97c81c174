package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/testutil"
)

func testQuestion() domain.Question {
	return domain.Question{
		Text:      "Hoeveel vakantiedagen heb ik per jaar?",
		Language:  "nl",
		SessionID: "sess-1",
	}
}

func TestRetrieveCassette(t *testing.T) {
	rec := testutil.NewRecorder(t, "retriever_query")
	client := NewClient("https://context.internal.example", "test-key",
		WithHTTPClient(testutil.HTTPClient(rec)))

	result, err := client.Retrieve(context.Background(), testQuestion())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if result.Tokens != 120 {
		t.Errorf("tokens = %d, want 120", result.Tokens)
	}
	if !result.Cost.Equal(decimal.RequireFromString("0.0003")) {
		t.Errorf("cost = %s, want 0.0003", result.Cost)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(result.Citations))
	}
	if result.Citations[0].Source != "personeelshandboek.pdf" || result.Citations[0].Page != "12" {
		t.Errorf("unexpected citation: %+v", result.Citations[0])
	}
}

func TestRetrieveSendsQueryFields(t *testing.T) {
	var got queryRequest
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(queryResponse{
			Context: "ctx",
			Tokens:  10,
			Cost:    decimal.RequireFromString("0.0001"),
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret", WithTopK(7))
	q := testQuestion()
	q.History = []domain.Message{{Role: "user", Content: "hoi"}, {Role: "assistant", Content: "hallo"}}

	if _, err := client.Retrieve(context.Background(), q); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if got.Question != q.Text || got.Language != "nl" {
		t.Errorf("request = %+v", got)
	}
	if got.TopK != 7 {
		t.Errorf("top_k = %d, want 7", got.TopK)
	}
	if got.HistorySize != 2 {
		t.Errorf("history_size = %d, want 2", got.HistorySize)
	}
}

func TestRetrieveUpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind domain.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrorKindUpstreamUnavailable},
		{"server error", http.StatusInternalServerError, domain.ErrorKindUpstreamUnavailable},
		{"bad request", http.StatusBadRequest, domain.ErrorKindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream detail", tt.status)
			}))
			defer ts.Close()

			client := NewClient(ts.URL, "")
			_, err := client.Retrieve(context.Background(), testQuestion())
			if err == nil {
				t.Fatal("expected error")
			}

			var perr *domain.PipelineError
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not a PipelineError", err)
			}
			if perr.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", perr.Kind, tt.wantKind)
			}
		})
	}
}

func TestRetrieveConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(ts.URL, "")
	_, err := client.Retrieve(context.Background(), testQuestion())
	if err == nil {
		t.Fatal("expected error")
	}

	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not a PipelineError", err)
	}
	if perr.Kind != domain.ErrorKindUpstreamUnavailable {
		t.Errorf("kind = %q, want upstream_unavailable", perr.Kind)
	}
}

func TestRetrieveMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "")
	_, err := client.Retrieve(context.Background(), testQuestion())
	if err == nil {
		t.Fatal("expected error")
	}

	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not a PipelineError", err)
	}
	if perr.Kind != domain.ErrorKindInternal {
		t.Errorf("kind = %q, want internal", perr.Kind)
	}
}
