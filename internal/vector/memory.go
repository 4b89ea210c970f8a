package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryBackend keeps entries in process memory and scans them on every query.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Insert(ctx context.Context, e Entry) error {
	emb := make([]float32, len(e.Embedding))
	copy(emb, e.Embedding)
	e.Embedding = emb

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryBackend) Nearest(ctx context.Context, embedding []float32, limit int) ([]Hit, error) {
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, Hit{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Distance: CosineDistance(embedding, e.Embedding),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryBackend) EnsureSchema(ctx context.Context) error { return nil }

// CosineDistance returns 1 - cos(a, b). Mismatched or zero vectors are maximally distant.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
