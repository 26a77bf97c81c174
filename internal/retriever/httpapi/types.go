package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

// queryRequest is the wire request for POST /v1/query.
type queryRequest struct {
	Question    string `json:"question"`
	Language    string `json:"language,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
}

// queryResponse is the wire response. Cost arrives as a decimal string.
type queryResponse struct {
	Context   string          `json:"context"`
	Citations []wireCitation  `json:"citations"`
	Tokens    int             `json:"tokens"`
	Cost      decimal.Decimal `json:"cost"`
}

type wireCitation struct {
	Source  string `json:"source"`
	Page    string `json:"page,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func (r *queryResponse) toDomain() *domain.RetrievedContext {
	citations := make([]domain.Citation, len(r.Citations))
	for i, c := range r.Citations {
		citations[i] = domain.Citation{
			Source:  c.Source,
			Page:    c.Page,
			Snippet: c.Snippet,
		}
	}
	return &domain.RetrievedContext{
		Text:      r.Context,
		Citations: citations,
		Tokens:    r.Tokens,
		Cost:      r.Cost,
	}
}
