// Package sqldb is a SQL implementation of the audit store supporting
// SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage/dialect"
)

// Store persists audit records and content-filter events in a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.AuditStore = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite, postgres
	DSN    string
}

// New creates a store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a SQLite-backed store at the given path, creating the
// parent directory if needed.
func NewSQLite(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

func (s *Store) initSchema() error {
	boolType := s.dialect.BooleanType()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_records (
id TEXT PRIMARY KEY,
tenant_id TEXT NOT NULL,
session_id TEXT,
question TEXT NOT NULL,
answer TEXT NOT NULL,
status TEXT NOT NULL,
language TEXT,
conversation_length INTEGER NOT NULL,
citation_count INTEGER NOT NULL,
retrieval_tokens INTEGER NOT NULL,
retrieval_cost TEXT NOT NULL,
prompt_tokens INTEGER NOT NULL,
completion_tokens INTEGER NOT NULL,
total_tokens INTEGER NOT NULL,
generation_cost TEXT NOT NULL,
usage_estimated %s NOT NULL,
total_cost TEXT NOT NULL,
response_time_ms INTEGER NOT NULL,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`, boolType),
		`CREATE INDEX IF NOT EXISTS idx_audit_records_tenant_created
ON audit_records (tenant_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS content_filter_events (
id TEXT PRIMARY KEY,
tenant_id TEXT NOT NULL,
session_id TEXT,
audit_id TEXT,
question TEXT NOT NULL,
detail TEXT,
created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_content_filter_events_tenant_created
ON content_filter_events (tenant_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	return nil
}

// CreateAuditRecord inserts a placeholder record.
func (s *Store) CreateAuditRecord(ctx context.Context, rec *domain.AuditRecord) error {
	query := s.dialect.Rebind(`INSERT INTO audit_records (
id, tenant_id, session_id, question, answer, status, language,
conversation_length, citation_count, retrieval_tokens, retrieval_cost,
prompt_tokens, completion_tokens, total_tokens, generation_cost,
usage_estimated, total_cost, response_time_ms, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.SessionID, rec.Question, rec.Answer,
		rec.Status, rec.Language, rec.ConversationLength, rec.CitationCount,
		rec.RetrievalTokens, rec.RetrievalCost.String(),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.GenerationCost.String(), rec.UsageEstimated,
		rec.TotalCost.String(), rec.ResponseTimeMs,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// FinalizeAuditRecord overwrites the placeholder fields exactly once.
func (s *Store) FinalizeAuditRecord(ctx context.Context, id string, fields storage.FinalizeFields) error {
	query := s.dialect.Rebind(`UPDATE audit_records SET
answer = ?, status = ?,
prompt_tokens = ?, completion_tokens = ?, total_tokens = ?,
generation_cost = ?, usage_estimated = ?, total_cost = ?,
response_time_ms = ?, updated_at = ?
WHERE id = ?`)

	result, err := s.db.ExecContext(ctx, query,
		fields.Answer, fields.Status,
		fields.Usage.PromptTokens, fields.Usage.CompletionTokens, fields.Usage.TotalTokens,
		fields.Usage.Cost.String(), fields.Usage.Estimated, fields.TotalCost.String(),
		fields.ResponseTimeMs, time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("finalize audit record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize audit record: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAuditRecord retrieves a record by id.
func (s *Store) GetAuditRecord(ctx context.Context, id string) (*domain.AuditRecord, error) {
	query := s.dialect.Rebind(`SELECT * FROM audit_records WHERE id = ?`)

	var rec domain.AuditRecord
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	return &rec, nil
}

// ListAuditRecords lists records newest first.
func (s *Store) ListAuditRecords(ctx context.Context, opts storage.ListOptions) ([]*domain.AuditRecord, error) {
	limit, offset := normalizePage(opts)

	var records []*domain.AuditRecord
	var err error
	if opts.TenantID != "" {
		query := s.dialect.Rebind(`SELECT * FROM audit_records
WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`)
		err = s.db.SelectContext(ctx, &records, query, opts.TenantID, limit, offset)
	} else {
		query := s.dialect.Rebind(`SELECT * FROM audit_records
ORDER BY created_at DESC LIMIT ? OFFSET ?`)
		err = s.db.SelectContext(ctx, &records, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

// AppendContentFilterEvent records an upstream policy refusal.
func (s *Store) AppendContentFilterEvent(ctx context.Context, ev *domain.ContentFilterEvent) error {
	query := s.dialect.Rebind(`INSERT INTO content_filter_events (
id, tenant_id, session_id, audit_id, question, detail, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.TenantID, ev.SessionID, ev.AuditID, ev.Question, ev.Detail, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content filter event: %w", err)
	}
	return nil
}

// ListContentFilterEvents lists refusal events newest first.
func (s *Store) ListContentFilterEvents(ctx context.Context, opts storage.ListOptions) ([]*domain.ContentFilterEvent, error) {
	limit, offset := normalizePage(opts)

	var events []*domain.ContentFilterEvent
	var err error
	if opts.TenantID != "" {
		query := s.dialect.Rebind(`SELECT * FROM content_filter_events
WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`)
		err = s.db.SelectContext(ctx, &events, query, opts.TenantID, limit, offset)
	} else {
		query := s.dialect.Rebind(`SELECT * FROM content_filter_events
ORDER BY created_at DESC LIMIT ? OFFSET ?`)
		err = s.db.SelectContext(ctx, &events, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list content filter events: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalizePage(opts storage.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
