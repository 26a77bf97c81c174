// Package chat exposes the streaming answer endpoint. It orchestrates
// retrieval, prompt assembly, generation, and the outward SSE stream.
package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aschouten1502/rag-demo-sub001/internal/audit"
	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
	"github.com/aschouten1502/rag-demo-sub001/internal/pipeline"
	"github.com/aschouten1502/rag-demo-sub001/internal/prompt"
	"github.com/aschouten1502/rag-demo-sub001/internal/server"
	"github.com/aschouten1502/rag-demo-sub001/internal/telemetry"
)

const maxQuestionBytes = 8 << 10

var tracer = telemetry.Tracer("internal/api/chat")

type chatRequest struct {
	Question  string           `json:"question"`
	History   []domain.Message `json:"history,omitempty"`
	Language  string           `json:"language,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Handler serves POST /v1/chat.
type Handler struct {
	retriever   domain.ContextRetriever
	generator   domain.Generator
	assembler   *prompt.Assembler
	lifecycle   *audit.Lifecycle
	transformer *pipeline.Transformer
	logger      *slog.Logger
}

func NewHandler(
	retriever domain.ContextRetriever,
	generator domain.Generator,
	assembler *prompt.Assembler,
	lifecycle *audit.Lifecycle,
	transformer *pipeline.Transformer,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		retriever:   retriever,
		generator:   generator,
		assembler:   assembler,
		lifecycle:   lifecycle,
		transformer: transformer,
		logger:      logger,
	}
}

// Register mounts the chat routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/chat", h.handleChat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clock := domain.RequestClock{StartedAt: time.Now()}
	tenantID := server.GetTenantID(ctx)

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrInvalid("request body is not valid JSON"))
		return
	}
	if req.Question == "" {
		h.writeError(w, r, domain.ErrInvalid("question must not be empty"))
		return
	}
	if len(req.Question) > maxQuestionBytes {
		h.writeError(w, r, domain.ErrInvalid("question exceeds maximum length"))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()
	}

	question := domain.Question{
		Text:      req.Question,
		History:   req.History,
		Language:  prompt.NormalizeLanguage(req.Language, h.assembler.Fallback()),
		SessionID: sessionID,
	}
	server.AddLogField(ctx, "session_id", sessionID)

	// Everything before the first byte of the stream fails as a plain
	// JSON error; once streaming starts, errors travel in-stream.
	retrCtx, span := tracer.Start(ctx, "retrieve_context")
	retrieval, err := h.retriever.Retrieve(retrCtx, question)
	span.End()
	if err != nil {
		h.writeError(w, r, domain.Classify(err))
		return
	}

	systemPrompt := h.assembler.Assemble(retrieval.Text, question.Language)

	auditID := h.lifecycle.CreatePlaceholder(ctx, tenantID, question, *retrieval)
	server.AddLogField(ctx, "audit_id", auditID)

	events, err := h.generator.Stream(ctx, systemPrompt, question)
	if err != nil {
		perr := domain.Classify(err)
		h.lifecycle.Finalize(ctx, auditID, audit.FinalizeParams{
			Status:        domain.AuditStatusFailed,
			RetrievalCost: retrieval.Cost,
			ElapsedMs:     clock.ElapsedMs(),
		})
		h.writeError(w, r, perr)
		return
	}

	out := h.transformer.Run(ctx, pipeline.Request{
		TenantID:     tenantID,
		Question:     question,
		Retrieval:    *retrieval,
		SystemPrompt: systemPrompt,
		AuditID:      auditID,
		Events:       events,
		Clock:        clock,
	})

	h.streamSSE(w, r, out)
}

// streamSSE writes outward events as server-sent events, flushing after
// each one so fragments reach the client as they are produced.
func (h *Handler) streamSSE(w http.ResponseWriter, r *http.Request, out <-chan pipeline.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, domain.ErrInternal(nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range out {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to marshal stream event",
				slog.String("request_id", server.GetRequestID(r.Context())),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, perr *domain.PipelineError) {
	server.AddError(r.Context(), perr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perr.HTTPStatusCode())
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Message: perr.UserMessage(),
		Type:    string(perr.Kind),
	}})
}
