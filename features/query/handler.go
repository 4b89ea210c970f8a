package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"secondbrain/internal/llm"
	"secondbrain/internal/middleware"
	"secondbrain/internal/retrieval"
	"secondbrain/internal/vector"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "received query", "provider", req.LLMChoice, "model", req.Model)

	resp, err := h.service.Ask(ctx, req)
	if err != nil {
		h.handleError(ctx, w, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Models lists the providers and models a client may choose from.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": h.service.Providers()}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, req Request, err error) {
	var berr *llm.BackendError
	switch {
	case errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, llm.ErrUnknownProvider),
		errors.Is(err, llm.ErrMissingCredential),
		errors.Is(err, llm.ErrUnknownModel):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	case errors.As(err, &berr):
		slog.ErrorContext(ctx, "completion failed", "provider", req.LLMChoice, "model", req.Model, "question", req.Question, "error", berr.Err)
		h.writeError(ctx, w, "BACKEND_UNAVAILABLE", berr.Hint, http.StatusServiceUnavailable)
		return
	case errors.Is(err, retrieval.ErrEmbedding):
		slog.ErrorContext(ctx, "embedding failed", "question", req.Question, "error", err)
		h.writeError(ctx, w, "BACKEND_UNAVAILABLE", "The embedding service is unavailable. Check that it is running and try again.", http.StatusServiceUnavailable)
		return
	case errors.Is(err, vector.ErrStorage):
		slog.ErrorContext(ctx, "vector store failed", "question", req.Question, "error", err)
		h.writeError(ctx, w, "STORAGE_ERROR", "The knowledge base could not be read.", http.StatusInternalServerError)
		return
	}

	slog.ErrorContext(ctx, "query failed", "provider", req.LLMChoice, "model", req.Model, "question", req.Question, "error", err)
	h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
