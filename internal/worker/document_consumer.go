package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"secondbrain/internal/config"
	"secondbrain/internal/middleware"
	"secondbrain/internal/text"
)

// DocumentConsumer splits a captured page into chunks and fans out one embed
// task per chunk.
type DocumentConsumer struct {
	settings  SettingsProvider
	publisher TaskPublisher
	failures  FailureRecorder
}

func NewDocumentConsumer(s SettingsProvider, p TaskPublisher, f FailureRecorder) *DocumentConsumer {
	return &DocumentConsumer{settings: s, publisher: p, failures: f}
}

func (h *DocumentConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestDocumentPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON is never retried
		slog.Error("poison pill: invalid json", "topic", config.TopicIngestDocument, "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if payload.DocumentID == "" {
		payload.DocumentID = uuid.New().String()
	}

	set := h.settings.Effective(ctx)
	chunks := text.Chunk(payload.CombinedText(), set.ChunkSize, set.ChunkOverlap)
	if len(chunks) == 0 {
		slog.WarnContext(ctx, "document has no text, nothing to store", "url", payload.URL)
		return nil
	}

	for i, c := range chunks {
		body, err := json.Marshal(IngestEmbedPayload{
			DocumentID:    payload.DocumentID,
			SourceURL:     payload.URL,
			Title:         payload.Title,
			Timestamp:     payload.Timestamp,
			Text:          c,
			ChunkIndex:    i,
			TotalChunks:   len(chunks),
			CorrelationID: payload.CorrelationID,
		})
		if err != nil {
			recordFailure(ctx, h.failures, config.TopicIngestDocument, payload.URL, m.Body, err)
			return nil
		}

		if err := h.publisher.Publish(config.TopicIngestEmbed, body); err != nil {
			// Chunks already published stay queued; the whole document is kept for a retry.
			recordFailure(ctx, h.failures, config.TopicIngestDocument, payload.URL, m.Body,
				fmt.Errorf("publish chunk %d/%d: %w", i+1, len(chunks), err))
			return nil
		}
	}

	slog.InfoContext(ctx, "document chunked", "url", payload.URL, "document_id", payload.DocumentID, "chunks", len(chunks))
	return nil
}
