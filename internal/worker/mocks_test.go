package worker_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"secondbrain/features/job"
	"secondbrain/internal/settings"
	"secondbrain/internal/vector"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) Put(ctx context.Context, text string, embedding []float32, meta vector.Metadata) (string, error) {
	args := m.Called(ctx, text, embedding, meta)
	return args.String(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	return m.Called(ctx, j).Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

type fixedSettings struct{ s *settings.Settings }

func (f fixedSettings) Effective(ctx context.Context) *settings.Settings { return f.s }

func defaultSettings() fixedSettings { return fixedSettings{s: settings.Defaults()} }

// textEmbedder maps exact texts to vectors and everything else to a fallback.
type textEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	seen     []string
}

func (e *textEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, text)
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallback, nil
}
