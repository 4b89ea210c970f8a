package worker

import (
	"context"

	"secondbrain/features/job"
	"secondbrain/internal/settings"
	"secondbrain/internal/vector"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChunkStore interface {
	Put(ctx context.Context, text string, embedding []float32, meta vector.Metadata) (string, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type SettingsProvider interface {
	Effective(ctx context.Context) *settings.Settings
}

// FailureRecorder keeps messages that could not be processed.
type FailureRecorder interface {
	Save(ctx context.Context, j *job.Job) error
}
