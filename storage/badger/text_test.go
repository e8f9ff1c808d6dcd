package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextIndex_IndexAndSearch(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	err := stores.Text.IndexDocument(ctx, "doc-a", "Postgres runbook",
		"How to fail over the postgres primary.", []string{"database"})
	require.NoError(t, err)
	err = stores.Text.IndexDocument(ctx, "doc-b", "Redis notes",
		"Eviction policy tuning.", []string{"cache"})
	require.NoError(t, err)

	hits, err := stores.Text.Search(ctx, "postgres", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a"}, hits)

	hits, err = stores.Text.Search(ctx, "eviction policy", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-b"}, hits)
}

func TestTextIndex_RanksByMatchedTerms(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-a", "",
		"kafka consumer lag", nil))
	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-b", "",
		"kafka topic retention", nil))

	hits, err := stores.Text.Search(ctx, "kafka consumer", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-a", hits[0])
}

func TestTextIndex_ReindexReplacesPostings(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-a", "",
		"original content about kubernetes", nil))
	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-a", "",
		"rewritten content about terraform", nil))

	hits, err := stores.Text.Search(ctx, "kubernetes", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = stores.Text.Search(ctx, "terraform", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a"}, hits)
}

func TestTextIndex_StopWordsIgnored(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-a", "",
		"the quick brown fox", nil))

	hits, err := stores.Text.Search(ctx, "the and of", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestTextIndex_DeleteDocument(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Text.IndexDocument(ctx, "doc-a", "",
		"ephemeral text", nil))
	require.NoError(t, stores.Text.DeleteDocument(ctx, "doc-a"))

	hits, err := stores.Text.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
