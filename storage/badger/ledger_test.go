package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Backend.Close() })
	return stores
}

func TestTaskLedger_CreateAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	taskId, err := stores.Ledger.Create(ctx, &core.Task{
		SourceKind: core.SourceUpload,
		Metadata:   map[string]string{"origin": "test"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, taskId)

	task, err := stores.Ledger.Get(ctx, taskId)
	require.NoError(t, err)
	assert.Equal(t, core.TaskQueued, task.Status)
	assert.Equal(t, "ingestion-"+taskId, task.WorkflowId)
	assert.Equal(t, "test", task.Metadata["origin"])
	assert.False(t, task.CreatedAt.IsZero())
}

func TestTaskLedger_GetMissing(t *testing.T) {
	stores := newTestStores(t)

	_, err := stores.Ledger.Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTaskLedger_StatusMonotone(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	taskId, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceUpload})
	require.NoError(t, err)

	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", ""))
	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskCompleted, "doc-1", ""))

	// Terminal tasks never move backwards.
	err = stores.Ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	err = stores.Ledger.UpdateStatus(ctx, taskId, core.TaskQueued, "", "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	err = stores.Ledger.UpdateStatus(ctx, taskId, core.TaskFailed, "", "boom")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	task, err := stores.Ledger.Get(ctx, taskId)
	require.NoError(t, err)
	assert.Equal(t, core.TaskCompleted, task.Status)
	assert.Equal(t, "doc-1", task.DocumentId)
}

func TestTaskLedger_RepeatedTerminalUpdateIsNoop(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	taskId, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceContainer})
	require.NoError(t, err)
	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", ""))
	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskCompleted, "doc-9", ""))

	// A retried delivery of the completion must not fail or change state.
	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskCompleted, "doc-9", ""))

	task, err := stores.Ledger.Get(ctx, taskId)
	require.NoError(t, err)
	assert.Equal(t, "doc-9", task.DocumentId)
}

func TestTaskLedger_UpdatedAtNeverDecreases(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	taskId, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceURL})
	require.NoError(t, err)
	created, err := stores.Ledger.Get(ctx, taskId)
	require.NoError(t, err)

	require.NoError(t, stores.Ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", ""))
	updated, err := stores.Ledger.Get(ctx, taskId)
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestTaskLedger_ListMostRecentFirst(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	ledger := stores.Ledger.(*taskLedger)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	ledger.clock = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceUpload})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	tasks, err := stores.Ledger.List(ctx, storage.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for i, task := range tasks {
		assert.Equal(t, ids[len(ids)-1-i], task.TaskId)
	}
}

func TestTaskLedger_ListFilterAndPagination(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		id, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceUpload})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Complete the first three.
	for _, id := range ids[:3] {
		require.NoError(t, stores.Ledger.UpdateStatus(ctx, id, core.TaskProcessing, "", ""))
		require.NoError(t, stores.Ledger.UpdateStatus(ctx, id, core.TaskCompleted, "doc", ""))
	}

	completed, err := stores.Ledger.List(ctx, storage.TaskFilter{Status: core.TaskCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 3)

	queued, err := stores.Ledger.List(ctx, storage.TaskFilter{Status: core.TaskQueued, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	page, err := stores.Ledger.List(ctx, storage.TaskFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestTaskLedger_Delete(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	taskId, err := stores.Ledger.Create(ctx, &core.Task{SourceKind: core.SourceUpload})
	require.NoError(t, err)

	require.NoError(t, stores.Ledger.Delete(ctx, taskId))

	_, err = stores.Ledger.Get(ctx, taskId)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tasks, err := stores.Ledger.List(ctx, storage.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
