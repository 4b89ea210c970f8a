package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	pgv "github.com/pgvector/pgvector-go"

	"secondbrain/internal/vector"
)

// Store is a vector.Backend over a Postgres table using the pgvector
// cosine distance operator.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_chunks (id UUID PRIMARY KEY, text TEXT NOT NULL, embedding vector NOT NULL, source_url TEXT NOT NULL DEFAULT '', title TEXT NOT NULL DEFAULT '', source_timestamp TEXT NOT NULL DEFAULT '', document_id TEXT NOT NULL DEFAULT '', chunk_index INT NOT NULL DEFAULT 0, total_chunks INT NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, e vector.Entry) error {
	query := `INSERT INTO knowledge_chunks (id, text, embedding, source_url, title, source_timestamp, document_id, chunk_index, total_chunks) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Text, pgv.NewVector(e.Embedding),
		e.Metadata.SourceURL, e.Metadata.Title, e.Metadata.Timestamp,
		e.Metadata.DocumentID, e.Metadata.ChunkIndex, e.Metadata.TotalChunks)
	return err
}

func (s *Store) Nearest(ctx context.Context, embedding []float32, limit int) ([]vector.Hit, error) {
	query := `SELECT id, text, source_url, title, source_timestamp, document_id, chunk_index, total_chunks, embedding <=> $1 AS distance FROM knowledge_chunks ORDER BY distance LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, pgv.NewVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var h vector.Hit
		var distance float64
		if err := rows.Scan(&h.ID, &h.Text, &h.Metadata.SourceURL, &h.Metadata.Title, &h.Metadata.Timestamp,
			&h.Metadata.DocumentID, &h.Metadata.ChunkIndex, &h.Metadata.TotalChunks, &distance); err != nil {
			return nil, err
		}
		h.Distance = float32(distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&count)
	return count, err
}
