package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrStorage marks a read or write failure in the backing vector store.
var ErrStorage = errors.New("vector store failure")

// Metadata is stored alongside every chunk.
type Metadata struct {
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	Timestamp   string `json:"timestamp"`
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// Entry is the persisted unit handed to a backend.
type Entry struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// Hit is a backend match. Distance follows the cosine convention: 0 means identical.
type Hit struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

// Result is a match after distance has been converted to similarity.
type Result struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Similarity float32  `json:"similarity"`
}

// Backend is implemented by each storage engine.
type Backend interface {
	Insert(ctx context.Context, e Entry) error
	Nearest(ctx context.Context, embedding []float32, limit int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	EnsureSchema(ctx context.Context) error
}

// Store applies id generation, similarity conversion and threshold filtering
// on top of a Backend.
type Store struct {
	backend Backend
	newID   func() string
}

func NewStore(b Backend) *Store {
	return &Store{
		backend: b,
		newID:   func() string { return uuid.New().String() },
	}
}

// Put stores a chunk under a freshly generated id.
func (s *Store) Put(ctx context.Context, text string, embedding []float32, meta Metadata) (string, error) {
	id := s.newID()
	if err := s.backend.Insert(ctx, Entry{ID: id, Text: text, Embedding: embedding, Metadata: meta}); err != nil {
		return "", fmt.Errorf("%w: insert %s: %w", ErrStorage, id, err)
	}
	return id, nil
}

// Query returns up to limit entries nearest to embedding with similarity >= threshold,
// where similarity = 1 - distance. An empty store or a full threshold miss yields
// empty slices and no error.
func (s *Store) Query(ctx context.Context, embedding []float32, limit int, threshold float32) ([]Result, []float32, error) {
	if limit <= 0 {
		return nil, nil, nil
	}

	hits, err := s.backend.Nearest(ctx, embedding, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: query: %w", ErrStorage, err)
	}

	results := make([]Result, 0, len(hits))
	scores := make([]float32, 0, len(hits))
	for _, h := range hits {
		sim := 1 - h.Distance
		if sim < threshold {
			continue
		}
		results = append(results, Result{ID: h.ID, Text: h.Text, Metadata: h.Metadata, Similarity: sim})
		scores = append(scores, sim)
		if len(results) == limit {
			break
		}
	}
	return results, scores, nil
}

// Count reports the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	return n, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.backend.EnsureSchema(ctx)
}
