package settings_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"secondbrain/internal/settings"
)

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := settings.NewPostgresRepo(db)
	cols := []string{"id", "similarity_threshold", "top_k", "chunk_size", "chunk_overlap", "local_llm_url", "gemini_api_key"}

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(cols).AddRow(1, 0.4, 5, 800, 100, "http://localhost:1234/v1", "key")
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, similarity_threshold, top_k, chunk_size, chunk_overlap, local_llm_url, gemini_api_key FROM settings WHERE id = 1")).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, float32(0.4), s.SimilarityThreshold)
		assert.Equal(t, 5, s.TopK)
		assert.Equal(t, 800, s.ChunkSize)
		assert.Equal(t, 100, s.ChunkOverlap)
		assert.Equal(t, "http://localhost:1234/v1", s.LocalLLMURL)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).WillReturnError(sqlmock.ErrCancelled)

		s, err := repo.Get(context.Background())
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	s := &settings.Settings{SimilarityThreshold: 0.5, TopK: 4, ChunkSize: 900, ChunkOverlap: 150, LocalLLMURL: "http://lm:1234/v1", GeminiAPIKey: "k"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE settings SET similarity_threshold = $1, top_k = $2, chunk_size = $3, chunk_overlap = $4, local_llm_url = $5, gemini_api_key = $6, updated_at = NOW() WHERE id = 1")).
		WithArgs(s.SimilarityThreshold, s.TopK, s.ChunkSize, s.ChunkOverlap, s.LocalLLMURL, s.GeminiAPIKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, settings.NewPostgresRepo(db).Update(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}
