package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"secondbrain/internal/retrieval"
	"secondbrain/internal/settings"
	"secondbrain/internal/vector"
)

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) RetrieveContext(ctx context.Context, question string, k int, threshold float32) (*retrieval.ContextBundle, error) {
	args := m.Called(ctx, question, k, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retrieval.ContextBundle), args.Error(1)
}

type fixedSettings struct{ s *settings.Settings }

func (f fixedSettings) Effective(ctx context.Context) *settings.Settings { return f.s }

func rpc(t *testing.T, h *Handler, body string) JSONRPCResponse {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, resp JSONRPCResponse) float64 {
	t.Helper()
	e, ok := resp.Error.(map[string]interface{})
	require.True(t, ok, "expected error object")
	return e["code"].(float64)
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var res ToolResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestHandler_Initialize(t *testing.T) {
	resp := rpc(t, NewHandler(nil, nil), `{"jsonrpc":"2.0","method":"initialize","id":1}`)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.EqualValues(t, 1, resp.ID)
}

func TestHandler_Notification(t *testing.T) {
	w := httptest.NewRecorder()
	NewHandler(nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandler_ToolsList(t *testing.T) {
	resp := rpc(t, NewHandler(nil, nil), `{"jsonrpc":"2.0","method":"tools/list","id":"a"}`)

	result := resp.Result.(map[string]interface{})
	list := result["tools"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, ToolRetrieveContext, list[0].(map[string]interface{})["name"])
}

func TestHandler_ParseAndMethodErrors(t *testing.T) {
	h := NewHandler(nil, nil)

	assert.EqualValues(t, ErrParse, errorCode(t, rpc(t, h, `{nope`)))
	assert.EqualValues(t, ErrMethodNotFound, errorCode(t, rpc(t, h, `{"jsonrpc":"2.0","method":"resources/list","id":2}`)))
}

func TestHandler_RetrieveContext(t *testing.T) {
	bundle := retrieval.Rank([]vector.Result{
		{Text: "Go has goroutines.", Metadata: vector.Metadata{Title: "Go", SourceURL: "https://go.dev"}, Similarity: 0.8},
	})

	tests := []struct {
		name      string
		args      string
		setup     func(r *MockRetriever)
		wantCode  int
		wantText  string
		wantError bool
	}{
		{
			name: "Uses Settings Defaults",
			args: `{"question":"what is go?"}`,
			setup: func(r *MockRetriever) {
				r.On("RetrieveContext", mock.Anything, "what is go?", 3, float32(0.3)).Return(bundle, nil)
			},
			wantText: "Source 1 - Go (https://go.dev):\nGo has goroutines.\n\nSources:\n- https://go.dev\n",
		},
		{
			name: "Explicit K",
			args: `{"question":"what is go?","k":7}`,
			setup: func(r *MockRetriever) {
				r.On("RetrieveContext", mock.Anything, "what is go?", 7, float32(0.3)).Return(bundle, nil)
			},
			wantText: "https://go.dev",
		},
		{
			name: "No Context",
			args: `{"question":"unrelated"}`,
			setup: func(r *MockRetriever) {
				r.On("RetrieveContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, retrieval.ErrNoContext)
			},
			wantText: "No relevant context",
		},
		{
			name: "Retrieval Failure",
			args: `{"question":"q"}`,
			setup: func(r *MockRetriever) {
				r.On("RetrieveContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("embedder down"))
			},
			wantText:  "embedder down",
			wantError: true,
		},
		{name: "Missing Question", args: `{"question":"  "}`, wantCode: ErrInvalidParams},
		{name: "K Out Of Range", args: `{"question":"q","k":0}`, wantCode: ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRetriever)
			if tt.setup != nil {
				tt.setup(r)
			}
			h := NewHandler(r, fixedSettings{settings.Defaults()})

			body := `{"jsonrpc":"2.0","method":"tools/call","id":3,"params":{"name":"retrieve_context","arguments":` + tt.args + `}}`
			resp := rpc(t, h, body)

			if tt.wantCode != 0 {
				assert.EqualValues(t, tt.wantCode, errorCode(t, resp))
				r.AssertNotCalled(t, "RetrieveContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			text, isErr := toolText(t, resp)
			assert.Contains(t, text, tt.wantText)
			assert.Equal(t, tt.wantError, isErr)
			r.AssertExpectations(t)
		})
	}
}

func TestHandler_UnknownTool(t *testing.T) {
	resp := rpc(t, NewHandler(nil, nil), `{"jsonrpc":"2.0","method":"tools/call","id":4,"params":{"name":"web_search"}}`)
	assert.EqualValues(t, ErrMethodNotFound, errorCode(t, resp))
}

func TestHandler_HandleMessage_MissingSessionID(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil).HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["error"].(map[string]interface{})["code"])
}

func TestHandler_HandleMessage_SessionNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil).HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HandleMessage_InvalidJSON(t *testing.T) {
	h := NewHandler(nil, nil)
	h.sessions["s1"] = make(chan string, 1)

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=s1", bytes.NewBufferString("{bad")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleMessage_DeliversToSession(t *testing.T) {
	h := NewHandler(nil, nil)
	ch := make(chan string, 1)
	h.sessions["s1"] = ch

	rec := httptest.NewRecorder()
	h.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=s1", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":9}`)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-ch:
		assert.Contains(t, msg, `"id":9`)
	case <-time.After(time.Second):
		t.Fatal("no response delivered to session")
	}
}

func TestHandler_HandleSSE_AdvertisesEndpoint(t *testing.T) {
	h := NewHandler(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/mcp/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleSSE(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		h.sessionsLock.RLock()
		defer h.sessionsLock.RUnlock()
		return len(h.sessions) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: endpoint")
	assert.Contains(t, rec.Body.String(), "/mcp/messages?sessionId=")
	assert.Empty(t, h.sessions)
}
