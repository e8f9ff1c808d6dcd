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

// graphStore is the BadgerDB-backed implementation of storage.GraphStore.
// Nodes are keyed by their natural-key hash, edges by (from, rel, to),
// so repeated writes converge instead of duplicating.
type graphStore struct {
	backend *Backend
	clock   storage.Clock
	logger  *slog.Logger
}

// NewGraphStore creates a graph store backed by the given backend.
func NewGraphStore(backend *Backend) (storage.GraphStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &graphStore{
		backend: backend,
		clock:   time.Now,
		logger:  slog.Default().With("component", "graph_store"),
	}, nil
}

func (g *graphStore) UpsertContainerImage(ctx context.Context, node *core.ContainerImageNode) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if node.Key == 0 {
		node.Key = core.ContainerImageKey(node.ImageId, node.ImageTag)
	}

	return g.backend.WithUpdate(func(tx *badger.Txn) error {
		now := g.clock().UTC()
		node.UpdatedAt = now
		node.InsertedAt = now

		key := makeNodeKey(imageRecordPrefix, node.Key)
		existing, err := readContainerImage(tx, node.Key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if existing != nil {
			node.InsertedAt = existing.InsertedAt
			// Secondary indexes must follow a changed registry or
			// repository, or stale entries would keep matching.
			if existing.Registry != node.Registry {
				if err := tx.Delete(makeImageIndexKey(imageRegPrefix, existing.Registry, node.Key)); err != nil {
					return err
				}
			}
			if existing.Repository != node.Repository {
				if err := tx.Delete(makeImageIndexKey(imageRepoPrefix, existing.Repository, node.Key)); err != nil {
					return err
				}
			}
		}

		if err := tx.Set(key, storage.MarshalContainerImageNode(node)); err != nil {
			return err
		}
		if err := tx.Set(makeImageIndexKey(imageRegPrefix, node.Registry, node.Key), nil); err != nil {
			return err
		}
		if err := tx.Set(makeImageIndexKey(imageRepoPrefix, node.Repository, node.Key), nil); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (g *graphStore) UpsertSBOM(ctx context.Context, node *core.SBOMNode) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if node.Key == 0 {
		node.Key = core.SBOMKey(node.Uri)
	}
	return g.upsertNode(sbomRecordPrefix, node.Key, &node.InsertedAt, &node.UpdatedAt,
		func() []byte { return storage.MarshalSBOMNode(node) },
		func(val []byte) (time.Time, error) {
			existing, err := storage.UnmarshalSBOMNode(val)
			if err != nil {
				return time.Time{}, err
			}
			return existing.InsertedAt, nil
		})
}

func (g *graphStore) UpsertVulnerability(ctx context.Context, node *core.VulnerabilityNode) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if node.Key == 0 {
		node.Key = core.VulnerabilityKey(node.CVEId)
	}
	return g.upsertNode(vulnRecordPrefix, node.Key, &node.InsertedAt, &node.UpdatedAt,
		func() []byte { return storage.MarshalVulnerabilityNode(node) },
		func(val []byte) (time.Time, error) {
			existing, err := storage.UnmarshalVulnerabilityNode(val)
			if err != nil {
				return time.Time{}, err
			}
			return existing.InsertedAt, nil
		})
}

func (g *graphStore) UpsertDocumentNode(ctx context.Context, node *core.DocumentNode) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if node.Key == 0 {
		node.Key = core.DocumentKey(node.DocumentId)
	}
	return g.upsertNode(docNodePrefix, node.Key, &node.InsertedAt, &node.UpdatedAt,
		func() []byte { return storage.MarshalDocumentNode(node) },
		func(val []byte) (time.Time, error) {
			existing, err := storage.UnmarshalDocumentNode(val)
			if err != nil {
				return time.Time{}, err
			}
			return existing.InsertedAt, nil
		})
}

func (g *graphStore) UpsertEntity(ctx context.Context, node *core.EntityNode) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if node.Key == 0 {
		node.Key = core.EntityKey(node.Name, node.Type)
	}
	return g.upsertNode(entityPrefix, node.Key, &node.InsertedAt, &node.UpdatedAt,
		func() []byte { return storage.MarshalEntityNode(node) },
		func(val []byte) (time.Time, error) {
			existing, err := storage.UnmarshalEntityNode(val)
			if err != nil {
				return time.Time{}, err
			}
			return existing.InsertedAt, nil
		})
}

// upsertNode writes a node record, preserving InsertedAt when the node
// already exists.
func (g *graphStore) upsertNode(prefix string, key core.ID, insertedAt, updatedAt *time.Time,
	marshal func() []byte, readInserted func(val []byte) (time.Time, error)) error {

	return g.backend.WithUpdate(func(tx *badger.Txn) error {
		now := g.clock().UTC()
		*updatedAt = now
		*insertedAt = now

		nodeKey := makeNodeKey(prefix, key)
		item, err := tx.Get(nodeKey)
		if err == nil {
			err = item.Value(func(val []byte) error {
				prev, err := readInserted(val)
				if err != nil {
					return err
				}
				*insertedAt = prev
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := tx.Set(nodeKey, marshal()); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (g *graphStore) Link(ctx context.Context, from core.ID, rel string, to core.ID, props map[string]string) error {
	if g.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if rel == "" {
		return fmt.Errorf("relationship name cannot be empty")
	}

	edge := &core.GraphEdge{
		From:      from,
		Rel:       rel,
		To:        to,
		Props:     props,
		UpdatedAt: g.clock().UTC(),
	}
	data := storage.MarshalGraphEdge(edge)

	return g.backend.WithUpdate(func(tx *badger.Txn) error {
		if err := tx.Set(makeEdgeKey(edgeOutPrefix, from, rel, to), data); err != nil {
			return err
		}
		// Reverse direction entry enables inbound-edge scans.
		if err := tx.Set(makeEdgeKey(edgeInPrefix, to, rel, from), data); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (g *graphStore) GetContainerImage(ctx context.Context, key core.ID) (*core.ContainerImageNode, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var node *core.ContainerImageNode
	err := g.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		node, err = readContainerImage(tx, key)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (g *graphStore) GetSBOM(ctx context.Context, key core.ID) (*core.SBOMNode, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var node *core.SBOMNode
	err := g.readNode(sbomRecordPrefix, key, func(val []byte) error {
		var err error
		node, err = storage.UnmarshalSBOMNode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (g *graphStore) GetVulnerability(ctx context.Context, key core.ID) (*core.VulnerabilityNode, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var node *core.VulnerabilityNode
	err := g.readNode(vulnRecordPrefix, key, func(val []byte) error {
		var err error
		node, err = storage.UnmarshalVulnerabilityNode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (g *graphStore) GetDocumentNode(ctx context.Context, key core.ID) (*core.DocumentNode, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var node *core.DocumentNode
	err := g.readNode(docNodePrefix, key, func(val []byte) error {
		var err error
		node, err = storage.UnmarshalDocumentNode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (g *graphStore) readNode(prefix string, key core.ID, unmarshal func(val []byte) error) error {
	return g.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeNodeKey(prefix, key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: node %d", storage.ErrNotFound, key)
			}
			return err
		}
		return item.Value(unmarshal)
	}, false)
}

func (g *graphStore) Edges(ctx context.Context, from core.ID, rel string) ([]*core.GraphEdge, error) {
	return g.scanEdges(edgeOutPrefix, from, rel)
}

func (g *graphStore) InEdges(ctx context.Context, to core.ID, rel string) ([]*core.GraphEdge, error) {
	return g.scanEdges(edgeInPrefix, to, rel)
}

func (g *graphStore) scanEdges(prefix string, node core.ID, rel string) ([]*core.GraphEdge, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var edges []*core.GraphEdge
	err := g.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEdgePrefix(prefix, node, rel)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				edge, err := storage.UnmarshalGraphEdge(val)
				if err != nil {
					return err
				}
				edges = append(edges, edge)
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
	return edges, nil
}

func (g *graphStore) ImagesByRegistry(ctx context.Context, registry string, limit int) ([]*core.ContainerImageNode, error) {
	return g.scanImageIndex(imageRegPrefix, registry, func(node *core.ContainerImageNode) bool {
		return true
	}, limit)
}

func (g *graphStore) ImagesByRepository(ctx context.Context, repository, tag string, limit int) ([]*core.ContainerImageNode, error) {
	return g.scanImageIndex(imageRepoPrefix, repository, func(node *core.ContainerImageNode) bool {
		return tag == "" || node.ImageTag == tag
	}, limit)
}

func (g *graphStore) scanImageIndex(prefix, value string, match func(*core.ContainerImageNode) bool, limit int) ([]*core.ContainerImageNode, error) {
	if g.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var nodes []*core.ContainerImageNode
	err := g.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeImageIndexPrefix(prefix, value)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			nodeKey := readID(key[len(key)-8:])

			node, err := readContainerImage(tx, nodeKey)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			if !match(node) {
				continue
			}
			nodes = append(nodes, node)
			if limit > 0 && len(nodes) >= limit {
				return nil
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// readContainerImage reads an image node within a transaction.
func readContainerImage(tx *badger.Txn, key core.ID) (*core.ContainerImageNode, error) {
	item, err := tx.Get(makeNodeKey(imageRecordPrefix, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: container image %d", storage.ErrNotFound, key)
		}
		return nil, err
	}

	var node *core.ContainerImageNode
	err = item.Value(func(val []byte) error {
		var err error
		node, err = storage.UnmarshalContainerImageNode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}
