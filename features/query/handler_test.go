package query_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"secondbrain/features/query"
	"secondbrain/internal/llm"
	"secondbrain/internal/retrieval"
	"secondbrain/internal/settings"
	"secondbrain/internal/vector"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlationId"`
}

func post(h *query.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.Query(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))
	return w
}

func TestHandler_Query(t *testing.T) {
	r, c := new(MockRetriever), new(MockCompleter)
	r.On("RetrieveContext", mock.Anything, "why?", 3, float32(0.3)).Return(bundle(), nil)
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("REASONING: r\nANSWER: a", nil)
	h := query.NewHandler(query.NewService(newRegistry(), r, c, fixedSettings{settings.Defaults()}, nil, 0.7))

	w := post(h, `{"question":"why?","llm_choice":"local"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "a", resp["answer"])
	assert.Equal(t, "r", resp["reasoning"])
	assert.Equal(t, []interface{}{"https://sky"}, resp["source_urls"])
	assert.Equal(t, llm.LocalModelName, resp["model_used"])
}

func TestHandler_Query_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		retrErr    error
		complErr   error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "Malformed JSON", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "Groq Without Key", body: `{"question":"q","llm_choice":"groq"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR", wantMsg: "api key required"},
		{name: "Unknown Provider", body: `{"question":"q","llm_choice":"claude"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "Embedding Down", body: `{"question":"q","llm_choice":"local"}`, retrErr: retrieval.ErrEmbedding, wantStatus: http.StatusServiceUnavailable, wantCode: "BACKEND_UNAVAILABLE", wantMsg: "embedding service"},
		{name: "Store Down", body: `{"question":"q","llm_choice":"local"}`, retrErr: vector.ErrStorage, wantStatus: http.StatusInternalServerError, wantCode: "STORAGE_ERROR"},
		{
			name:       "LLM Down",
			body:       `{"question":"q","llm_choice":"local"}`,
			complErr:   &llm.BackendError{Provider: llm.ProviderLocal, Hint: "Make sure LM Studio is running.", Err: errors.New("dial tcp 127.0.0.1:1234: connect: connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "BACKEND_UNAVAILABLE",
			wantMsg:    "Make sure LM Studio is running.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := new(MockRetriever), new(MockCompleter)
			if tt.retrErr != nil {
				r.On("RetrieveContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.retrErr)
			} else {
				r.On("RetrieveContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(bundle(), nil)
			}
			c.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", tt.complErr)
			h := query.NewHandler(query.NewService(newRegistry(), r, c, fixedSettings{settings.Defaults()}, nil, 0.7))

			w := post(h, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp errorBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, resp.Error.Message, tt.wantMsg)
			}
			assert.NotContains(t, resp.Error.Message, "connection refused")
		})
	}
}

func TestHandler_Models(t *testing.T) {
	h := query.NewHandler(query.NewService(newRegistry(), nil, nil, nil, nil, 0.7))
	w := httptest.NewRecorder()
	h.Models(w, httptest.NewRequest(http.MethodGet, "/models", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []query.ProviderInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Data, 2)
}
