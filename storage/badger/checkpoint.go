// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// checkpointStore is the BadgerDB-backed implementation of
// storage.CheckpointStore.
type checkpointStore struct {
	backend *Backend
	clock   storage.Clock
	logger  *slog.Logger
}

// NewCheckpointStore creates a checkpoint store backed by the given backend.
func NewCheckpointStore(backend *Backend) (storage.CheckpointStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &checkpointStore{
		backend: backend,
		clock:   time.Now,
		logger:  slog.Default().With("component", "checkpoint_store"),
	}, nil
}

func (c *checkpointStore) SaveCheckpoint(ctx context.Context, checkpoint *core.WorkflowCheckpoint) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if checkpoint.TaskId == "" {
		return fmt.Errorf("checkpoint task id cannot be empty")
	}
	checkpoint.UpdatedAt = c.clock().UTC()

	data := storage.MarshalCheckpoint(checkpoint)
	return c.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Set(makeCheckpointKey(checkpoint.TaskId), data); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (c *checkpointStore) LoadCheckpoint(ctx context.Context, taskId string) (*core.WorkflowCheckpoint, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var checkpoint *core.WorkflowCheckpoint
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(taskId))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Absence is not an error; the task simply never
				// reached a suspension point.
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			checkpoint, err = storage.UnmarshalCheckpoint(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return checkpoint, nil
}

func (c *checkpointStore) DeleteCheckpoint(ctx context.Context, taskId string) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return c.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(taskId)); err != nil {
			return err
		}
		return tx.Commit()
	})
}
