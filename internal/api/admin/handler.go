// Package admin exposes read-only endpoints over the audit trail for
// operators and billing tooling.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/server"
	"github.com/aschouten1502/rag-demo-sub001/internal/storage"
)

// Handler serves the /admin routes.
type Handler struct {
	store  storage.AuditStore
	logger *slog.Logger
}

func NewHandler(store storage.AuditStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the admin routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/audit", h.listAuditRecords)
		r.Get("/audit/{id}", h.getAuditRecord)
		r.Get("/content-filter", h.listContentFilterEvents)
	})
}

func (h *Handler) listAuditRecords(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	recs, err := h.store.ListAuditRecords(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"count":   len(recs),
	})
}

func (h *Handler) getAuditRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetAuditRecord(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) listContentFilterEvents(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	events, err := h.store.ListContentFilterEvents(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// listOptions parses tenant/limit/offset query parameters. Invalid numbers
// fall back to defaults rather than failing the request.
func listOptions(r *http.Request) storage.ListOptions {
	q := r.URL.Query()
	opts := storage.ListOptions{TenantID: q.Get("tenant")}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		opts.Offset = offset
	}
	return opts
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	}

	h.logger.Error("admin query failed",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	perr := domain.Classify(err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": perr.UserMessage()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
