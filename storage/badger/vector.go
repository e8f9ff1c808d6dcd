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
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// vectorIndex is the BadgerDB-backed implementation of storage.VectorIndex.
// Chunks are keyed by (document key, chunk index); re-ingestion overwrites
// in place and trims any stale tail in the same transaction.
type vectorIndex struct {
	backend *Backend
	logger  *slog.Logger
}

// NewVectorIndex creates a vector index backed by the given backend.
func NewVectorIndex(backend *Backend) (storage.VectorIndex, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &vectorIndex{
		backend: backend,
		logger:  slog.Default().With("component", "vector_index"),
	}, nil
}

func (v *vectorIndex) UpsertChunks(ctx context.Context, documentId string, chunks []core.Chunk) error {
	if v.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	docKey := core.IDFromContent(documentId)

	return v.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorDocKey(docKey), []byte(documentId)); err != nil {
			return err
		}
		for i := range chunks {
			chunk := chunks[i]
			chunk.Index = i
			data := storage.MarshalChunk(&chunk)
			if err := tx.Set(makeVectorKey(docKey, i), data); err != nil {
				return err
			}
		}

		// A shorter re-ingest leaves stale chunks past the new count.
		// Collect their keys first; deleting under an open iterator is
		// not allowed.
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(docKey)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if vectorKeyIndex(key) >= len(chunks) {
				stale = append(stale, key)
			}
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (v *vectorIndex) Chunks(ctx context.Context, documentId string) ([]core.Chunk, error) {
	if v.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	docKey := core.IDFromContent(documentId)

	var chunks []core.Chunk
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(docKey)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Keys sort by big-endian chunk index, so iteration order is
		// already index order.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, *chunk)
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
	return chunks, nil
}

func (v *vectorIndex) Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*storage.ChunkMatch, error) {
	if v.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var results []*storage.ChunkMatch
	docIds := make(map[core.ID]string)
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.Key()
			docKey := readID(key[len(vectorPrefix)+1 : len(vectorPrefix)+9])

			docId, ok := docIds[docKey]
			if !ok {
				var err error
				docId, err = readVectorDocId(tx, docKey)
				if err != nil {
					return err
				}
				docIds[docKey] = docId
			}

			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				continue
			}

			// Cosine similarity reduces to a dot product for
			// normalized embedding vectors.
			similarity := dotProduct(vector, chunk.Vector)
			if similarity >= minSimilarity {
				results = append(results, &storage.ChunkMatch{
					DocumentId: docId,
					Chunk:      *chunk,
					Score:      similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *storage.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (v *vectorIndex) DeleteDocument(ctx context.Context, documentId string) error {
	if v.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	docKey := core.IDFromContent(documentId)

	return v.backend.WithUpdate(func(tx *badger.Txn) error {
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(docKey)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeVectorDocKey(docKey)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// readVectorDocId resolves a doc-key hash back to its document id.
func readVectorDocId(tx *badger.Txn, docKey core.ID) (string, error) {
	item, err := tx.Get(makeVectorDocKey(docKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: vector document %d", storage.ErrNotFound, docKey)
		}
		return "", err
	}
	var docId string
	err = item.Value(func(val []byte) error {
		docId = string(val)
		return nil
	})
	return docId, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
