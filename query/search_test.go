package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/ai/mock"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage/badger"
)

func newTestSearcher(t *testing.T) (*DocumentSearcher, *badger.Stores, *mock.MockEmbedder) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })

	embedder := mock.NewMockEmbedder()
	searcher, err := NewDocumentSearcher(stores.Vectors, stores.Text, stores.Metadata, embedder)
	require.NoError(t, err)
	return searcher, stores, embedder
}

func seedDocument(t *testing.T, stores *badger.Stores, docId, title, text string, vector []float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, stores.Metadata.PutDocument(ctx, &core.Document{
		DocumentId: docId,
		Title:      title,
		SourceKind: core.SourceUpload,
	}))
	require.NoError(t, stores.Text.IndexDocument(ctx, docId, title, text, nil))
	if vector != nil {
		require.NoError(t, stores.Vectors.UpsertChunks(ctx, docId, []core.Chunk{
			{Index: 0, Text: text, Vector: vector},
		}))
	}
}

func TestHybridRanking(t *testing.T) {
	searcher, stores, embedder := newTestSearcher(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	// Semantic and keyword hit.
	seedDocument(t, stores, "doc-aaa", "rollout checklist",
		"The deployment rollout checklist for the gateway.", []float32{1, 0, 0, 0})
	// Keyword-only hit.
	seedDocument(t, stores, "doc-bbb", "oncall handbook",
		"Follow the rollout procedure during deployment windows.", []float32{0, 1, 0, 0})
	// No overlap with the query at all.
	seedDocument(t, stores, "doc-ccc", "lunch menu",
		"Soup of the day and sandwiches.", []float32{0, 0, 1, 0})

	hits, err := searcher.FindDocuments(ctx, "deployment rollout", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// The document matching both signals outranks the keyword-only one.
	assert.Equal(t, "doc-aaa", hits[0].Document.DocumentId)
	assert.Equal(t, "doc-bbb", hits[1].Document.DocumentId)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestTitleMatchBoost(t *testing.T) {
	searcher, stores, embedder := newTestSearcher(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	seedDocument(t, stores, "doc-title", "postgres upgrade guide",
		"Steps for the postgres upgrade.", []float32{1, 0, 0, 0})
	seedDocument(t, stores, "doc-body", "maintenance notes",
		"Notes mentioning the postgres upgrade in passing.", []float32{1, 0, 0, 0})

	hits, err := searcher.FindDocuments(ctx, "postgres upgrade", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-title", hits[0].Document.DocumentId)
	assert.InDelta(t, 0.3, hits[0].Score-hits[1].Score, 0.001)
}

func TestSearchNoHits(t *testing.T) {
	searcher, _, embedder := newTestSearcher(t)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	hits, err := searcher.FindDocuments(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchMonitorCallbacks(t *testing.T) {
	searcher, stores, embedder := newTestSearcher(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}
	seedDocument(t, stores, "doc-aaa", "rollout checklist",
		"The deployment rollout checklist.", []float32{1, 0, 0, 0})

	monitor := &recordingMonitor{}
	hits, err := searcher.FindDocumentsWithMonitor(ctx, "deployment rollout", 5, monitor)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "deployment rollout", monitor.query)
	assert.Equal(t, []string{"doc-aaa"}, monitor.semanticIds)
	assert.Equal(t, []string{"doc-aaa"}, monitor.keywordIds)
	assert.Equal(t, []string{"doc-aaa"}, monitor.bothHits)
	assert.Len(t, monitor.finished, 1)
}

type recordingMonitor struct {
	query       string
	semanticIds []string
	keywordIds  []string
	bothHits    []string
	finished    []*DocumentHit
}

func (m *recordingMonitor) Start(query string)                 { m.query = query }
func (m *recordingMonitor) AfterSemanticSearch(ids []string)   { m.semanticIds = ids }
func (m *recordingMonitor) AfterKeywordSearch(ids []string)    { m.keywordIds = ids }
func (m *recordingMonitor) SemanticAndKeywordHit(docId string) { m.bothHits = append(m.bothHits, docId) }
func (m *recordingMonitor) SemanticHit(_ string)               {}
func (m *recordingMonitor) KeywordHit(_ string)                {}
func (m *recordingMonitor) Finish(results []*DocumentHit)      { m.finished = results }
