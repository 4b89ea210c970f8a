package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"secondbrain/internal/config"
	"secondbrain/internal/middleware"
	"secondbrain/internal/vector"
)

const defaultEmbedTimeout = 60 * time.Second

// EmbedderConsumer embeds one chunk and writes it to the vector store.
type EmbedderConsumer struct {
	embedder Embedder
	store    ChunkStore
	failures FailureRecorder
	timeout  time.Duration
}

func NewEmbedderConsumer(e Embedder, s ChunkStore, f FailureRecorder, timeout time.Duration) *EmbedderConsumer {
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	return &EmbedderConsumer{embedder: e, store: s, failures: f, timeout: timeout}
}

func (h *EmbedderConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestEmbedPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON is never retried
		slog.Error("poison pill: invalid json", "topic", config.TopicIngestEmbed, "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	embedCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	emb, err := h.embedder.Embed(embedCtx, payload.Text)
	if err != nil {
		recordFailure(ctx, h.failures, config.TopicIngestEmbed, payload.SourceURL, m.Body, fmt.Errorf("embed: %w", err))
		return nil
	}

	id, err := h.store.Put(embedCtx, payload.Text, emb, vector.Metadata{
		SourceURL:   payload.SourceURL,
		Title:       payload.Title,
		Timestamp:   payload.Timestamp,
		DocumentID:  payload.DocumentID,
		ChunkIndex:  payload.ChunkIndex,
		TotalChunks: payload.TotalChunks,
	})
	if err != nil {
		recordFailure(ctx, h.failures, config.TopicIngestEmbed, payload.SourceURL, m.Body, err)
		return nil
	}

	slog.InfoContext(ctx, "chunk stored", "id", id, "document_id", payload.DocumentID, "chunk_index", payload.ChunkIndex, "total_chunks", payload.TotalChunks)
	return nil
}
