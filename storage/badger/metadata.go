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

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// metadataStore is the BadgerDB-backed implementation of
// storage.MetadataStore. Records are keyed by document id, so a
// re-ingest under the same natural key overwrites in place.
type metadataStore struct {
	backend *Backend
	logger  *slog.Logger
}

// NewMetadataStore creates a metadata store backed by the given backend.
func NewMetadataStore(backend *Backend) (storage.MetadataStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &metadataStore{
		backend: backend,
		logger:  slog.Default().With("component", "metadata_store"),
	}, nil
}

func (m *metadataStore) PutDocument(ctx context.Context, doc *core.Document) error {
	if m.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if doc.DocumentId == "" {
		return fmt.Errorf("document id cannot be empty")
	}

	data := storage.MarshalDocument(doc)
	return m.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Set(makeMetadataKey(doc.DocumentId), data); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (m *metadataStore) GetDocument(ctx context.Context, documentId string) (*core.Document, error) {
	if m.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var doc *core.Document
	err := m.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeMetadataKey(documentId))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: document %s", storage.ErrNotFound, documentId)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *metadataStore) ListDocuments(ctx context.Context, limit, offset int) ([]*core.Document, error) {
	if m.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var docs []*core.Document
	err := m.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metadataPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(docs) >= limit {
				break
			}
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *metadataStore) DeleteDocument(ctx context.Context, documentId string) error {
	if m.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return m.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Delete(makeMetadataKey(documentId)); err != nil {
			return err
		}
		return tx.Commit()
	})
}
