package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"secondbrain/internal/settings"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, s *settings.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func TestHandler_GetSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(repo))
		repo.On("Get", mock.Anything).Return(&settings.Settings{SimilarityThreshold: 0.5, TopK: 3}, nil)

		w := httptest.NewRecorder()
		handler.GetSettings(w, httptest.NewRequest("GET", "/settings", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		json.NewDecoder(w.Body).Decode(&body)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, 0.5, data["similarity_threshold"])
		assert.Equal(t, 3.0, data["top_k"])
		repo.AssertExpectations(t)
	})

	t.Run("InternalError", func(t *testing.T) {
		repo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(repo))
		repo.On("Get", mock.Anything).Return(nil, errors.New("db error"))

		w := httptest.NewRecorder()
		handler.GetSettings(w, httptest.NewRequest("GET", "/settings", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]interface{}
		json.NewDecoder(w.Body).Decode(&body)
		errObj := body["error"].(map[string]interface{})
		assert.Equal(t, "INTERNAL_ERROR", errObj["code"])
	})
}

func TestHandler_UpdateSettings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(repo))
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *settings.Settings) bool {
			return s.TopK == 5 && s.ChunkSize == 800
		})).Return(nil)

		body, _ := json.Marshal(map[string]interface{}{
			"similarity_threshold": 0.4, "top_k": 5, "chunk_size": 800, "chunk_overlap": 100,
		})
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, httptest.NewRequest("PUT", "/settings", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("Validation Error", func(t *testing.T) {
		repo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(repo))

		body, _ := json.Marshal(map[string]interface{}{"similarity_threshold": 2.0, "top_k": 3, "chunk_size": 100})
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, httptest.NewRequest("PUT", "/settings", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Bad JSON", func(t *testing.T) {
		handler := settings.NewHandler(settings.NewService(new(MockRepository)))
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, httptest.NewRequest("PUT", "/settings", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Repo Error", func(t *testing.T) {
		repo := new(MockRepository)
		handler := settings.NewHandler(settings.NewService(repo))
		repo.On("Update", mock.Anything, mock.Anything).Return(errors.New("db error"))

		body, _ := json.Marshal(settings.Defaults())
		w := httptest.NewRecorder()
		handler.UpdateSettings(w, httptest.NewRequest("PUT", "/settings", bytes.NewReader(body)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
