// Package memory is an in-memory audit store for tests and ephemeral
// deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
)

// Store is an in-memory implementation of storage.AuditStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.AuditRecord
	events  []*domain.ContentFilterEvent
}

var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*domain.AuditRecord),
	}
}

func (s *Store) CreateAuditRecord(ctx context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("audit record %s already exists", rec.ID)
	}

	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *Store) FinalizeAuditRecord(ctx context.Context, id string, fields storage.FinalizeFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return storage.ErrNotFound
	}

	rec.Answer = fields.Answer
	rec.Status = fields.Status
	rec.PromptTokens = fields.Usage.PromptTokens
	rec.CompletionTokens = fields.Usage.CompletionTokens
	rec.TotalTokens = fields.Usage.TotalTokens
	rec.GenerationCost = fields.Usage.Cost
	rec.UsageEstimated = fields.Usage.Estimated
	rec.TotalCost = fields.TotalCost
	rec.ResponseTimeMs = fields.ResponseTimeMs
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) GetAuditRecord(ctx context.Context, id string) (*domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *Store) ListAuditRecords(ctx context.Context, opts storage.ListOptions) ([]*domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.AuditRecord, 0, len(s.records))
	for _, rec := range s.records {
		if opts.TenantID != "" && rec.TenantID != opts.TenantID {
			continue
		}
		clone := *rec
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, opts), nil
}

func (s *Store) AppendContentFilterEvent(ctx context.Context, ev *domain.ContentFilterEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *ev
	s.events = append(s.events, &clone)
	return nil
}

func (s *Store) ListContentFilterEvents(ctx context.Context, opts storage.ListOptions) ([]*domain.ContentFilterEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.ContentFilterEvent, 0, len(s.events))
	for _, ev := range s.events {
		if opts.TenantID != "" && ev.TenantID != opts.TenantID {
			continue
		}
		clone := *ev
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, opts), nil
}

func (s *Store) Close() error {
	return nil
}

func page[T any](items []T, opts storage.ListOptions) []T {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
