package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/ai/mock"
)

func TestChunkAndEmbed_EmptyTextYieldsNoChunks(t *testing.T) {
	stage, err := NewChunkEmbedStage(mock.NewMockEmbedder())
	require.NoError(t, err)

	chunks, err := stage.ChunkAndEmbed(context.Background(), "   \n\t  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkAndEmbed_ShortTextSingleChunk(t *testing.T) {
	stage, err := NewChunkEmbedStage(mock.NewMockEmbedder())
	require.NoError(t, err)

	chunks, err := stage.ChunkAndEmbed(context.Background(), "a short passage")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "a short passage", chunks[0].Text)
	assert.NotEmpty(t, chunks[0].Vector)
}

func TestChunkAndEmbed_Deterministic(t *testing.T) {
	stage, err := NewChunkEmbedStage(mock.NewMockEmbedder(),
		WithChunkSize(50), WithChunkOverlap(10))
	require.NoError(t, err)

	text := strings.Repeat("all work and no play makes jack a dull boy. ", 20)
	first, err := stage.ChunkAndEmbed(context.Background(), text)
	require.NoError(t, err)
	second, err := stage.ChunkAndEmbed(context.Background(), text)
	require.NoError(t, err)

	require.Greater(t, len(first), 1)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Vector, second[i].Vector)
	}
}

func TestChunkAndEmbed_EmbedderFailurePropagates(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	stage, err := NewChunkEmbedStage(embedder)
	require.NoError(t, err)

	_, err = stage.ChunkAndEmbed(context.Background(), "some text")
	assert.Error(t, err)
}
