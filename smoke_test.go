package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"secondbrain/internal/config"
	"secondbrain/internal/testutils"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitHealthy(t *testing.T, port int) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond)
}

func TestSmoke_MemoryBackend(t *testing.T) {
	cfg := &config.Config{
		VectorBackend:        config.BackendMemory,
		EmbedderProvider:     config.EmbedderOpenAI,
		EmbeddingBaseURL:     "http://localhost:1/v1",
		IngestionConcurrency: 1,
		ServerPort:           freePort(t),
		OTELServiceName:      "secondbrain-test",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger) }()

	waitHealthy(t, cfg.ServerPort)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSmoke_Startup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping smoke test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()
	cfg.NSQEnabled = false
	cfg.EmbedderProvider = config.EmbedderOpenAI
	cfg.ServerPort = freePort(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := run(ctx, cfg, logger); err != nil {
			t.Logf("app run exited: %v", err)
		}
	}()

	waitHealthy(t, cfg.ServerPort)
}
