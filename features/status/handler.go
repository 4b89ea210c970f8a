package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"secondbrain/internal/middleware"
)

type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

type JobCounter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	chunks ChunkCounter
	jobs   JobCounter
}

func NewHandler(c ChunkCounter, j JobCounter) *Handler {
	return &Handler{chunks: c, jobs: j}
}

type Response struct {
	Status         string `json:"status"`
	TotalDocuments int    `json:"total_documents"`
	FailedJobs     int    `json:"failed_jobs"`
}

// GetStatus reports the number of stored chunks and parked ingestion failures.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.chunks.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "STORAGE_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	failed, err := h.jobs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := Response{
		Status:         "running",
		TotalDocuments: docs,
		FailedJobs:     failed,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
