package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
)

func TestVectorIndex_UpsertAndRead(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	chunks := []core.Chunk{
		{Text: "first passage", Vector: []float32{1, 0, 0}},
		{Text: "second passage", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-a", chunks))

	got, err := stores.Vectors.Chunks(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "first passage", got[0].Text)
	assert.Equal(t, 1, got[1].Index)
}

func TestVectorIndex_ReingestTrimsStaleTail(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	long := []core.Chunk{
		{Text: "one", Vector: []float32{1, 0}},
		{Text: "two", Vector: []float32{0, 1}},
		{Text: "three", Vector: []float32{1, 1}},
	}
	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-a", long))

	short := []core.Chunk{
		{Text: "one rewritten", Vector: []float32{1, 0}},
	}
	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-a", short))

	got, err := stores.Vectors.Chunks(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one rewritten", got[0].Text)
}

func TestVectorIndex_SearchRanksByCosine(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-a", []core.Chunk{
		{Text: "about databases", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-b", []core.Chunk{
		{Text: "about networking", Vector: []float32{0.6, 0.8, 0}},
	}))

	matches, err := stores.Vectors.Search(ctx, []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc-a", matches[0].DocumentId)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	strict, err := stores.Vectors.Search(ctx, []float32{1, 0, 0}, 0.9, 10)
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, "doc-a", strict[0].DocumentId)
}

func TestVectorIndex_DeleteDocument(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.UpsertChunks(ctx, "doc-a", []core.Chunk{
		{Text: "gone soon", Vector: []float32{1}},
	}))
	require.NoError(t, stores.Vectors.DeleteDocument(ctx, "doc-a"))

	got, err := stores.Vectors.Chunks(ctx, "doc-a")
	require.NoError(t, err)
	assert.Empty(t, got)

	matches, err := stores.Vectors.Search(ctx, []float32{1}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
