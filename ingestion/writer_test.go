package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
	"github.com/poiesic/shipdex/storage/badger"
)

func newTestWriter(t *testing.T) (*MultiStoreWriter, *badger.Stores, *storage.MemoryBlobStore) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })

	blobs := storage.NewMemoryBlobStore()
	writer, err := NewMultiStoreWriter(stores.Graph, stores.Vectors, stores.Text, stores.Metadata, blobs)
	require.NoError(t, err)
	return writer, stores, blobs
}

func normalizedContainer(t *testing.T) *core.NormalizedDocument {
	t.Helper()
	n := NewNormalizer(nil)
	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:    core.SourceContainer,
		Container: testContainerMeta(),
	}, []byte(`{"image":"acme/payments"}`))
	require.NoError(t, err)
	return norm
}

func TestWrite_ContainerFansOutToAllStores(t *testing.T) {
	writer, stores, blobs := newTestWriter(t)
	ctx := context.Background()
	norm := normalizedContainer(t)
	chunks := []core.Chunk{{Text: norm.Text, Vector: []float32{1, 0}}}

	docId, err := writer.Write(ctx, norm, chunks)
	require.NoError(t, err)
	assert.Equal(t, norm.Document.DocumentId, docId)

	// Metadata store has the document with blob location and chunk count.
	doc, err := stores.Metadata.GetDocument(ctx, docId)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, "mem://raw/"+docId, doc.BlobUri)
	assert.Equal(t, 1, blobs.Len())

	// Graph has the image with SBOM and vulnerability links.
	meta := testContainerMeta()
	imageKey := core.ContainerImageKey(meta.ImageId, meta.ImageTag)
	image, err := stores.Graph.GetContainerImage(ctx, imageKey)
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io", image.Registry)

	sboms, err := stores.Graph.Edges(ctx, imageKey, core.RelHasSBOM)
	require.NoError(t, err)
	assert.Len(t, sboms, 1)

	vulns, err := stores.Graph.Edges(ctx, imageKey, core.RelHasVulnerability)
	require.NoError(t, err)
	require.Len(t, vulns, 1)
	assert.Equal(t, "high", vulns[0].Props[core.EdgePropSeverity])
	assert.NotEmpty(t, vulns[0].Props[core.EdgePropDetectedAt])

	docs, err := stores.Graph.Edges(ctx, imageKey, core.RelDocumentedIn)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// Vector and full-text indexes are populated.
	stored, err := stores.Vectors.Chunks(ctx, docId)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	hits, err := stores.Text.Search(ctx, "payments", 10)
	require.NoError(t, err)
	assert.Contains(t, hits, docId)
}

func TestWrite_RepeatedContainerWriteConverges(t *testing.T) {
	writer, stores, _ := newTestWriter(t)
	ctx := context.Background()
	norm := normalizedContainer(t)
	chunks := []core.Chunk{{Text: norm.Text, Vector: []float32{1, 0}}}

	_, err := writer.Write(ctx, norm, chunks)
	require.NoError(t, err)
	docId, err := writer.Write(ctx, normalizedContainer(t), chunks)
	require.NoError(t, err)

	meta := testContainerMeta()
	imageKey := core.ContainerImageKey(meta.ImageId, meta.ImageTag)

	// One image node, one vulnerability edge, one chunk set.
	images, err := stores.Graph.ImagesByRepository(ctx, meta.Repository, "", 0)
	require.NoError(t, err)
	assert.Len(t, images, 1)

	vulns, err := stores.Graph.Edges(ctx, imageKey, core.RelHasVulnerability)
	require.NoError(t, err)
	assert.Len(t, vulns, 1)

	stored, err := stores.Vectors.Chunks(ctx, docId)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWrite_SharedCVEDedupedAcrossImages(t *testing.T) {
	writer, stores, _ := newTestWriter(t)
	ctx := context.Background()
	n := NewNormalizer(nil)

	for _, tag := range []string{"1.0", "2.0"} {
		meta := testContainerMeta()
		meta.ImageTag = tag
		norm, err := n.Normalize(ctx, &core.Submission{
			Source:    core.SourceContainer,
			Container: meta,
		}, []byte(`{}`))
		require.NoError(t, err)
		_, err = writer.Write(ctx, norm, nil)
		require.NoError(t, err)
	}

	vulnKey := core.VulnerabilityKey("CVE-2024-0001")
	node, err := stores.Graph.GetVulnerability(ctx, vulnKey)
	require.NoError(t, err)
	assert.Equal(t, "CVE-2024-0001", node.CVEId)

	// One shared node, two inbound edges.
	inbound, err := stores.Graph.InEdges(ctx, vulnKey, core.RelHasVulnerability)
	require.NoError(t, err)
	assert.Len(t, inbound, 2)
}

func TestWrite_DocumentWithEntities(t *testing.T) {
	writer, stores, _ := newTestWriter(t)
	ctx := context.Background()

	norm := &core.NormalizedDocument{
		Document: core.Document{
			DocumentId: "doc-1122334455667788",
			Title:      "postgres guide",
			MimeType:   "text/plain",
			SourceKind: core.SourceUpload,
		},
		Text:     "all about postgres",
		Entities: []core.Entity{{Name: "postgres", Type: "technology"}},
		Raw:      []byte("all about postgres"),
	}
	docId, err := writer.Write(ctx, norm, []core.Chunk{{Text: norm.Text, Vector: []float32{1}}})
	require.NoError(t, err)

	docKey := core.DocumentKey(docId)
	mentions, err := stores.Graph.Edges(ctx, docKey, core.RelMentions)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, core.EntityKey("postgres", "technology"), mentions[0].To)
}

// failingBlobStore rejects every write.
type failingBlobStore struct{}

func (f *failingBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", core.NewStoreWriteError("blob", key, errors.New("bucket unavailable"))
}

func (f *failingBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func TestWrite_FailureNamesStoreAndIsRetryable(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })

	writer, err := NewMultiStoreWriter(stores.Graph, stores.Vectors, stores.Text, stores.Metadata, &failingBlobStore{})
	require.NoError(t, err)

	_, err = writer.Write(context.Background(), normalizedContainer(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreWrite)
	assert.True(t, core.IsRetryable(err))

	var swe *core.StoreWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "blob", swe.Store)
}
