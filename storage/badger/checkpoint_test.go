package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
)

func TestCheckpointStore_SaveLoadDelete(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	cp := &core.WorkflowCheckpoint{
		TaskId:  "task-1",
		Stage:   core.StageNormalize,
		Attempt: 2,
		Submission: core.Submission{
			Source: core.SourceUpload,
			Title:  "notes",
		},
		Content: []byte("raw bytes"),
	}
	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, cp))

	loaded, err := stores.Checkpoints.LoadCheckpoint(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, core.StageNormalize, loaded.Stage)
	assert.Equal(t, 2, loaded.Attempt)
	assert.Equal(t, []byte("raw bytes"), loaded.Content)
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, stores.Checkpoints.DeleteCheckpoint(ctx, "task-1"))
	loaded, err = stores.Checkpoints.LoadCheckpoint(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCheckpointStore_LoadMissingIsNil(t *testing.T) {
	stores := newTestStores(t)

	cp, err := stores.Checkpoints.LoadCheckpoint(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestMetadataStore_PutGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	doc := &core.Document{
		DocumentId: "doc-42",
		Title:      "api reference",
		MimeType:   "text/markdown",
		SourceKind: core.SourceUpload,
		ChunkCount: 3,
	}
	require.NoError(t, stores.Metadata.PutDocument(ctx, doc))

	got, err := stores.Metadata.GetDocument(ctx, "doc-42")
	require.NoError(t, err)
	assert.Equal(t, "api reference", got.Title)
	assert.Equal(t, 3, got.ChunkCount)
}

func TestMetadataStore_ListDocuments(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	for _, docId := range []string{"doc-c", "doc-a", "doc-b"} {
		require.NoError(t, stores.Metadata.PutDocument(ctx, &core.Document{
			DocumentId: docId,
			Title:      "title " + docId,
		}))
	}

	docs, err := stores.Metadata.ListDocuments(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-a", docs[0].DocumentId)
	assert.Equal(t, "doc-b", docs[1].DocumentId)
	assert.Equal(t, "doc-c", docs[2].DocumentId)

	docs, err = stores.Metadata.ListDocuments(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-b", docs[0].DocumentId)
}
