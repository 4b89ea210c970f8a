package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the runtime-tunable knobs for chunking, retrieval and the local LLM.
type Settings struct {
	ID                  int     `json:"-"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
	TopK                int     `json:"top_k"`
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	LocalLLMURL         string  `json:"local_llm_url"`
	GeminiAPIKey        string  `json:"gemini_api_key"`
}

// Defaults mirror the seed row written by the initial migration.
func Defaults() *Settings {
	return &Settings{
		ID:                  1,
		SimilarityThreshold: 0.3,
		TopK:                3,
		ChunkSize:           1000,
		ChunkOverlap:        200,
	}
}

func (s *Settings) Validate() error {
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1", ErrInvalidSettings)
	}
	if s.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1", ErrInvalidSettings)
	}
	if s.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be at least 1", ErrInvalidSettings)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ErrInvalidSettings)
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Effective returns the stored settings, or the defaults when they cannot be read.
func (s *Service) Effective(ctx context.Context) *Settings {
	set, err := s.repo.Get(ctx)
	if err != nil || set == nil {
		slog.WarnContext(ctx, "falling back to default settings", "error", err)
		return Defaults()
	}
	return set
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
