package worker_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondbrain/internal/config"
	"secondbrain/internal/retrieval"
	"secondbrain/internal/text"
	"secondbrain/internal/vector"
	"secondbrain/internal/worker"
)

func documentText(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence %03d describes one more detail of the topic. ", i)
	}
	return b.String()[:n]
}

func publish(t *testing.T, bus *worker.LocalBus, p worker.IngestDocumentPayload) {
	t.Helper()
	require.NoError(t, bus.Publish(config.TopicIngestDocument, message(t, p).Body))
}

func TestPipeline_IngestThenRetrieve(t *testing.T) {
	ctx := context.Background()
	store := vector.NewStore(vector.NewMemoryBackend())
	jobs := new(MockJobRepo)

	docA := worker.IngestDocumentPayload{
		URL:         "https://example.com/long",
		Title:       "Long Read",
		TextContent: documentText(2500),
		Timestamp:   "2024-01-01T00:00:00Z",
	}
	docB := worker.IngestDocumentPayload{
		URL:         "https://example.com/short",
		Title:       "Short Note",
		TextContent: "A short note that is loosely related.",
		Timestamp:   "2024-01-02T00:00:00Z",
	}

	set := defaultSettings()
	chunksA := text.Chunk(docA.CombinedText(), set.s.ChunkSize, set.s.ChunkOverlap)
	require.GreaterOrEqual(t, len(chunksA), 2)

	const question = "what does the second part say?"
	embedder := &textEmbedder{
		vectors: map[string][]float32{
			chunksA[1]:          {0, 1, 0},
			docB.CombinedText(): {0.8, 0.6, 0},
			question:            {0, 1, 0},
		},
		fallback: []float32{0, 0, 1},
	}

	bus := worker.NewLocalBus(4)
	bus.Subscribe(config.TopicIngestDocument, worker.NewDocumentConsumer(set, bus, jobs))
	bus.Subscribe(config.TopicIngestEmbed, worker.NewEmbedderConsumer(embedder, store, jobs, 0))

	publish(t, bus, docA)
	publish(t, bus, docB)
	bus.Wait()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(chunksA)+1, n)

	bundle, err := retrieval.NewService(embedder, store, 0).RetrieveContext(ctx, question, 3, 0.3)
	require.NoError(t, err)

	require.NotEmpty(t, bundle.Sources)
	assert.Equal(t, docA.URL, bundle.Sources[0])
	assert.Equal(t, []string{docA.URL, docB.URL}, bundle.Sources)
	assert.InDelta(t, 1.0, bundle.Scores[0], 1e-6)
	assert.InDelta(t, 0.6, bundle.Scores[1], 1e-6)
	assert.Equal(t, chunksA[1], bundle.Chunks[0].Text)
	assert.Equal(t, 1, bundle.Chunks[0].Metadata.ChunkIndex)
	assert.Equal(t, len(chunksA), bundle.Chunks[0].Metadata.TotalChunks)
	assert.True(t, strings.HasPrefix(bundle.Context, "Source 1 - Long Read (https://example.com/long):\n"))
}

func TestPipeline_EmptyStoreHasNoContext(t *testing.T) {
	store := vector.NewStore(vector.NewMemoryBackend())
	embedder := &textEmbedder{fallback: []float32{1, 0}}

	_, err := retrieval.NewService(embedder, store, 0).RetrieveContext(context.Background(), "anything", 3, 0.3)
	assert.ErrorIs(t, err, retrieval.ErrNoContext)
}
