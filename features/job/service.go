package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const publishTimeout = 5 * time.Second

var ErrInvalidPayload = errors.New("stored payload is not valid JSON")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: publishTimeout}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes a failed job's payload to its original topic and removes
// the job once the publish is acknowledged.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if !json.Valid(job.Payload) {
		return fmt.Errorf("%w: job %s", ErrInvalidPayload, id)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(job.Topic, job.Payload)
	}()

	timer := time.NewTimer(s.publishTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish to %s: %w", job.Topic, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timeout waiting for NSQ publish")
	}

	s.logger.InfoContext(ctx, "failed job requeued", "id", id, "topic", job.Topic, "url", job.DocumentURL)
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
