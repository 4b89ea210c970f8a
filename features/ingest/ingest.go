package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"secondbrain/internal/config"
	"secondbrain/internal/middleware"
	"secondbrain/internal/worker"
)

var (
	ErrInvalidDocument  = errors.New("invalid document")
	ErrQueueUnavailable = errors.New("ingestion queue unavailable")
)

// Document is a page captured by the browser extension.
type Document struct {
	URL                 string                      `json:"url"`
	Title               *string                     `json:"title"`
	TextContent         *string                     `json:"textContent"`
	Images              []worker.Image              `json:"images"`
	VideoTranscriptions []worker.VideoTranscription `json:"videoTranscriptions"`
	Timestamp           *string                     `json:"timestamp"`
}

// Validate checks required fields. Title and text may be empty but must be present.
func (d *Document) Validate() error {
	if err := validateHTTPURL(d.URL); err != nil {
		return fmt.Errorf("%w: url %v", ErrInvalidDocument, err)
	}
	if d.Title == nil {
		return fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}
	if d.TextContent == nil {
		return fmt.Errorf("%w: textContent is required", ErrInvalidDocument)
	}
	if d.Timestamp == nil || strings.TrimSpace(*d.Timestamp) == "" {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidDocument)
	}
	for i, img := range d.Images {
		if err := validateHTTPURL(img.Src); err != nil {
			return fmt.Errorf("%w: images[%d].src %v", ErrInvalidDocument, i, err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	pub EventPublisher
}

func NewService(pub EventPublisher) *Service {
	return &Service{pub: pub}
}

// Submit validates a document and queues it for chunking and embedding. It
// returns once the queue has accepted the message; the outcome of processing
// is only visible through the failed jobs list.
func (s *Service) Submit(ctx context.Context, doc *Document) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}

	payload := worker.IngestDocumentPayload{
		DocumentID:          uuid.New().String(),
		URL:                 doc.URL,
		Title:               *doc.Title,
		TextContent:         *doc.TextContent,
		Images:              doc.Images,
		VideoTranscriptions: doc.VideoTranscriptions,
		Timestamp:           *doc.Timestamp,
		CorrelationID:       middleware.GetCorrelationID(ctx),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	if err := s.pub.Publish(config.TopicIngestDocument, body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	slog.InfoContext(ctx, "document queued", "url", doc.URL, "document_id", payload.DocumentID, "bytes", len(body))
	return payload.DocumentID, nil
}
