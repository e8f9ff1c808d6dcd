package reindex

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/ai/mock"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage/badger"
)

func fastConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func seedChunks(t *testing.T, stores *badger.Stores, docId string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, stores.Metadata.PutDocument(ctx, &core.Document{
		DocumentId: docId,
		Title:      docId,
		ChunkCount: len(texts),
	}))
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{Index: i, Text: text, Vector: []float32{0, 0, 0, 1}}
	}
	require.NoError(t, stores.Vectors.UpsertChunks(ctx, docId, chunks))
}

func TestReindexerRewritesVectorsKeepsTexts(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })
	ctx := context.Background()

	seedChunks(t, stores, "doc-a", "first passage", "second passage")
	seedChunks(t, stores, "doc-b", "third passage")
	seedChunks(t, stores, "doc-c", "fourth", "fifth", "sixth")

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0, 0}
		}
		return vectors, nil
	}

	var out bytes.Buffer
	reindexer, err := NewReindexer(stores.Metadata, stores.Vectors, embedder, fastConfig(), &out)
	require.NoError(t, err)
	require.NoError(t, reindexer.Run(ctx))

	for docId, count := range map[string]int{"doc-a": 2, "doc-b": 1, "doc-c": 3} {
		chunks, err := stores.Vectors.Chunks(ctx, docId)
		require.NoError(t, err)
		require.Len(t, chunks, count)
		for _, chunk := range chunks {
			assert.Equal(t, []float32{1, 0, 0, 0}, chunk.Vector)
			assert.NotEmpty(t, chunk.Text)
		}
	}
	assert.Contains(t, out.String(), "Reindexing complete")
}

func TestReindexerRetriesTransientEmbedFailure(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })
	ctx := context.Background()

	seedChunks(t, stores, "doc-a", "only passage")

	calls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("model still loading")
		}
		return [][]float32{{1, 0, 0, 0}}, nil
	}

	var out bytes.Buffer
	reindexer, err := NewReindexer(stores.Metadata, stores.Vectors, embedder, fastConfig(), &out)
	require.NoError(t, err)
	require.NoError(t, reindexer.Run(ctx))

	assert.Equal(t, 3, calls)
	chunks, err := stores.Vectors.Chunks(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{1, 0, 0, 0}, chunks[0].Vector)
}

func TestReindexerEmptyDatabase(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })

	var out bytes.Buffer
	reindexer, err := NewReindexer(stores.Metadata, stores.Vectors, mock.NewMockEmbedder(), fastConfig(), &out)
	require.NoError(t, err)
	require.NoError(t, reindexer.Run(context.Background()))
	assert.Contains(t, out.String(), "No documents found")
}

func TestReindexerSkipsDocumentsWithoutChunks(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })
	ctx := context.Background()

	// A container record with no document text has metadata but no chunks.
	require.NoError(t, stores.Metadata.PutDocument(ctx, &core.Document{
		DocumentId: "doc-container",
		Title:      "registry.example.com artifact",
	}))

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		t.Fatal("embedder must not be called for chunkless documents")
		return nil, nil
	}

	var out bytes.Buffer
	reindexer, err := NewReindexer(stores.Metadata, stores.Vectors, embedder, fastConfig(), &out)
	require.NoError(t, err)
	require.NoError(t, reindexer.Run(ctx))
}
