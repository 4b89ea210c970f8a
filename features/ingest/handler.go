package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"secondbrain/internal/middleware"
)

// maxBodyBytes matches the nsqd default max message size.
const maxBodyBytes = 1 << 20

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "received content", "url", doc.URL)

	if _, err := h.service.Submit(ctx, &doc); err != nil {
		switch {
		case errors.Is(err, ErrInvalidDocument):
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrQueueUnavailable):
			slog.ErrorContext(ctx, "failed to queue document", "url", doc.URL, "error", err)
			h.writeError(ctx, w, "BACKEND_UNAVAILABLE", "The ingestion queue is unavailable. Try again shortly.", http.StatusServiceUnavailable)
		default:
			slog.ErrorContext(ctx, "failed to queue document", "url", doc.URL, "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := Response{
		Status:  "processing",
		Message: "Content received and queued for processing",
		URL:     doc.URL,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
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
