package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnswerPlaceholder is the sentinel answer stored on a freshly created
// audit record. It is overwritten exactly once at finalization.
const AnswerPlaceholder = "[in progress]"

// AuditStatus represents the lifecycle state of an audit record.
type AuditStatus string

const (
	// AuditStatusPending marks the placeholder created before generation.
	AuditStatusPending AuditStatus = "pending"

	// AuditStatusCompleted marks a normally finished request.
	AuditStatusCompleted AuditStatus = "completed"

	// AuditStatusFailed marks a request that ended in an upstream failure
	// after streaming began.
	AuditStatusFailed AuditStatus = "failed"

	// AuditStatusAborted marks a request whose consumer disconnected before
	// the usage summary arrived. Token counts on such records are estimates.
	AuditStatusAborted AuditStatus = "aborted"
)

// AuditRecord is the persisted row capturing cost, timing, and content of
// one request, for analytics and billing.
//
// Lifecycle: created as a placeholder before generation starts, mutated
// exactly once at stream completion. The ID, assigned at creation, is
// immutable and is delivered to the caller in the stream's metadata event.
type AuditRecord struct {
	ID        string `json:"id" db:"id"`
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	Question string      `json:"question" db:"question"`
	Answer   string      `json:"answer" db:"answer"`
	Status   AuditStatus `json:"status" db:"status"`

	Language           string `json:"language,omitempty" db:"language"`
	ConversationLength int    `json:"conversation_length" db:"conversation_length"`
	CitationCount      int    `json:"citation_count" db:"citation_count"`

	RetrievalTokens int             `json:"retrieval_tokens" db:"retrieval_tokens"`
	RetrievalCost   decimal.Decimal `json:"retrieval_cost" db:"retrieval_cost"`

	PromptTokens     int             `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int             `json:"total_tokens" db:"total_tokens"`
	GenerationCost   decimal.Decimal `json:"generation_cost" db:"generation_cost"`
	UsageEstimated   bool            `json:"usage_estimated,omitempty" db:"usage_estimated"`

	// TotalCost = RetrievalCost + GenerationCost, computed once at
	// finalization, never during streaming.
	TotalCost decimal.Decimal `json:"total_cost" db:"total_cost"`

	ResponseTimeMs int64 `json:"response_time_ms" db:"response_time_ms"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewAuditRecord creates a placeholder record for a question.
func NewAuditRecord(id, tenantID string, q Question, retrieval RetrievedContext) *AuditRecord {
	now := time.Now().UTC()
	return &AuditRecord{
		ID:                 id,
		TenantID:           tenantID,
		SessionID:          q.SessionID,
		Question:           q.Text,
		Answer:             AnswerPlaceholder,
		Status:             AuditStatusPending,
		Language:           q.Language,
		ConversationLength: len(q.History),
		CitationCount:      len(retrieval.Citations),
		RetrievalTokens:    retrieval.Tokens,
		RetrievalCost:      retrieval.Cost,
		GenerationCost:     decimal.Zero,
		TotalCost:          decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ContentFilterEvent records an upstream policy refusal. It is a distinct
// audit path: no generation cost was incurred, so no normal audit record is
// finalized for the request.
type ContentFilterEvent struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	SessionID string    `json:"session_id,omitempty" db:"session_id"`
	AuditID   string    `json:"audit_id,omitempty" db:"audit_id"`
	Question  string    `json:"question" db:"question"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
