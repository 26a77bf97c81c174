// Package storage defines the persistence ports for audit records.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ListOptions controls pagination and filtering for listings.
type ListOptions struct {
	TenantID string
	Limit    int
	Offset   int
}

// FinalizeFields carries the mutable fields written exactly once when an
// audit record is finalized.
type FinalizeFields struct {
	Answer         string
	Status         domain.AuditStatus
	Usage          domain.Usage
	TotalCost      decimal.Decimal
	ResponseTimeMs int64
}

// AuditStore persists audit records and content-filter events.
//
// Implementations must be safe for concurrent use; the fire-and-forget
// finalize path runs outside the request goroutine.
type AuditStore interface {
	// CreateAuditRecord inserts a placeholder record.
	CreateAuditRecord(ctx context.Context, rec *domain.AuditRecord) error

	// FinalizeAuditRecord overwrites the placeholder fields. It fails if
	// the record does not exist.
	FinalizeAuditRecord(ctx context.Context, id string, fields FinalizeFields) error

	// GetAuditRecord retrieves a record by id.
	GetAuditRecord(ctx context.Context, id string) (*domain.AuditRecord, error)

	// ListAuditRecords lists records newest first.
	ListAuditRecords(ctx context.Context, opts ListOptions) ([]*domain.AuditRecord, error)

	// AppendContentFilterEvent records an upstream policy refusal.
	AppendContentFilterEvent(ctx context.Context, ev *domain.ContentFilterEvent) error

	// ListContentFilterEvents lists refusal events newest first.
	ListContentFilterEvents(ctx context.Context, opts ListOptions) ([]*domain.ContentFilterEvent, error)

	// Close releases the underlying resources.
	Close() error
}
