package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, similarity_threshold, top_k, chunk_size, chunk_overlap, local_llm_url, gemini_api_key FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.SimilarityThreshold, &s.TopK, &s.ChunkSize, &s.ChunkOverlap, &s.LocalLLMURL, &s.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `UPDATE settings SET similarity_threshold = $1, top_k = $2, chunk_size = $3, chunk_overlap = $4, local_llm_url = $5, gemini_api_key = $6, updated_at = NOW() WHERE id = 1`
	_, err := r.db.ExecContext(ctx, query, s.SimilarityThreshold, s.TopK, s.ChunkSize, s.ChunkOverlap, s.LocalLLMURL, s.GeminiAPIKey)
	return err
}
