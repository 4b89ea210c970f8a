package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"secondbrain/internal/observability"
	"secondbrain/internal/vector"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 3

// SectionSeparator sits between labeled context sections.
const SectionSeparator = "\n\n---\n\n"

var (
	// ErrNoContext means nothing stored cleared the similarity threshold.
	ErrNoContext = errors.New("no relevant context found")
	// ErrEmbedding means the question could not be embedded.
	ErrEmbedding = errors.New("embedding backend unavailable")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Query(ctx context.Context, embedding []float32, limit int, threshold float32) ([]vector.Result, []float32, error)
}

// ContextBundle is the ranked evidence for one question.
type ContextBundle struct {
	Context string          `json:"context"`
	Sources []string        `json:"sources"`
	Scores  []float32       `json:"scores"`
	Chunks  []vector.Result `json:"-"`
}

// TopSimilarity returns the best score, or 0 for an empty bundle.
func (b *ContextBundle) TopSimilarity() float32 {
	if b == nil || len(b.Scores) == 0 {
		return 0
	}
	return b.Scores[0]
}

type Service struct {
	embedder     Embedder
	store        VectorStore
	embedTimeout time.Duration
}

func NewService(e Embedder, s VectorStore, embedTimeout time.Duration) *Service {
	return &Service{embedder: e, store: s, embedTimeout: embedTimeout}
}

// RetrieveContext embeds the question, fetches up to k chunks with similarity
// at or above threshold, and ranks them best first. It returns ErrNoContext
// when nothing qualifies.
func (s *Service) RetrieveContext(ctx context.Context, question string, k int, threshold float32) (*ContextBundle, error) {
	if k <= 0 {
		k = DefaultK
	}

	ctx, span := observability.StartRetrievalSpan(ctx, k, threshold)
	defer span.End()

	vec, err := s.embed(ctx, question)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEmbedding, err)
		observability.RecordError(span, err)
		return nil, err
	}

	results, _, err := s.store.Query(ctx, vec, k, threshold)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(results) == 0 {
		observability.RecordRetrievalResult(span, 0, 0)
		return nil, ErrNoContext
	}

	bundle := Rank(results)
	observability.RecordRetrievalResult(span, len(bundle.Sources), bundle.TopSimilarity())
	return bundle, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	return s.embedder.Embed(ctx, text)
}

// Rank orders results by similarity, highest first, and assembles the labeled
// context block and the deduplicated source list. The input is not modified.
func Rank(results []vector.Result) *ContextBundle {
	ranked := make([]vector.Result, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })

	sections := make([]string, len(ranked))
	scores := make([]float32, len(ranked))
	for i, r := range ranked {
		sections[i] = fmt.Sprintf("Source %d - %s (%s):\n%s", i+1, r.Metadata.Title, r.Metadata.SourceURL, r.Text)
		scores[i] = r.Similarity
	}

	return &ContextBundle{
		Context: strings.Join(sections, SectionSeparator),
		Sources: DedupSources(ranked),
		Scores:  scores,
		Chunks:  ranked,
	}
}

// DedupSources lists source URLs in first-seen order, each once.
func DedupSources(results []vector.Result) []string {
	seen := make(map[string]struct{}, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		u := r.Metadata.SourceURL
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
