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
	"github.com/google/uuid"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// taskLedger is the BadgerDB-backed implementation of storage.TaskLedger.
// Status updates run in serialized read-modify-write transactions so
// concurrent writers for the same task cannot produce a non-monotone
// history.
type taskLedger struct {
	backend *Backend
	clock   storage.Clock
	logger  *slog.Logger
}

// NewTaskLedger creates a task ledger backed by the given backend.
func NewTaskLedger(backend *Backend) (storage.TaskLedger, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &taskLedger{
		backend: backend,
		clock:   time.Now,
		logger:  slog.Default().With("component", "task_ledger"),
	}, nil
}

func (l *taskLedger) Create(ctx context.Context, task *core.Task) (string, error) {
	if l.backend.IsClosed() {
		return "", storage.ErrStorageClosed
	}
	if task.TaskId == "" {
		task.TaskId = uuid.NewString()
	}
	if task.WorkflowId == "" {
		task.WorkflowId = "ingestion-" + task.TaskId
	}
	if task.Status == "" {
		task.Status = core.TaskQueued
	}
	now := l.clock().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	data := storage.MarshalTask(task)

	err := l.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Set(makeTaskKey(task.TaskId), data); err != nil {
			return err
		}
		orderKey := makeTaskOrderKey(task.CreatedAt.UnixMicro(), task.TaskId)
		if err := tx.Set(orderKey, []byte(task.TaskId)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	l.logger.Debug("task created", "task_id", task.TaskId, "source", task.SourceKind)
	return task.TaskId, nil
}

func (l *taskLedger) UpdateStatus(ctx context.Context, taskId string, status core.TaskStatus, documentId, errMsg string) error {
	if l.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", storage.ErrInvalidTransition, status)
	}

	return l.backend.WithUpdate(func(tx *badger.Txn) error {
		task, err := readTask(tx, taskId)
		if err != nil {
			return err
		}

		if task.Status == status {
			// Retried delivery of the same update. Safe to absorb.
			return nil
		}
		if !core.ValidTransition(task.Status, status) {
			return fmt.Errorf("%w: %s -> %s for task %s",
				storage.ErrInvalidTransition, task.Status, status, taskId)
		}

		task.Status = status
		if status == core.TaskCompleted {
			task.DocumentId = documentId
		}
		if status == core.TaskFailed {
			task.Error = errMsg
		}
		now := l.clock().UTC()
		if now.After(task.UpdatedAt) {
			task.UpdatedAt = now
		}

		if err := tx.Set(makeTaskKey(taskId), storage.MarshalTask(task)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (l *taskLedger) Get(ctx context.Context, taskId string) (*core.Task, error) {
	if l.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var task *core.Task
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		task, err = readTask(tx, taskId)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (l *taskLedger) List(ctx context.Context, filter storage.TaskFilter) ([]*core.Task, error) {
	if l.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var tasks []*core.Task
	skipped := 0

	err := l.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(taskOrderPrefix + ":")
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts just past the prefix range.
		seek := append([]byte(taskOrderPrefix+":"), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			var taskId string
			err := iter.Item().Value(func(val []byte) error {
				taskId = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			task, err := readTask(tx, taskId)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					// Orphaned index entry from a deleted task.
					continue
				}
				return err
			}
			if filter.Status != "" && task.Status != filter.Status {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			tasks = append(tasks, task)
			if filter.Limit > 0 && len(tasks) >= filter.Limit {
				return nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (l *taskLedger) Delete(ctx context.Context, taskId string) error {
	if l.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return l.backend.WithUpdate(func(tx *badger.Txn) error {
		task, err := readTask(tx, taskId)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeTaskKey(taskId)); err != nil {
			return err
		}
		orderKey := makeTaskOrderKey(task.CreatedAt.UnixMicro(), taskId)
		if err := tx.Delete(orderKey); err != nil {
			return err
		}
		if err := tx.Delete(makeCheckpointKey(taskId)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// readTask reads and unmarshals a task within a transaction.
func readTask(tx *badger.Txn, taskId string) (*core.Task, error) {
	item, err := tx.Get(makeTaskKey(taskId))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: task %s", storage.ErrNotFound, taskId)
		}
		return nil, err
	}

	var task *core.Task
	err = item.Value(func(val []byte) error {
		var err error
		task, err = storage.UnmarshalTask(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
