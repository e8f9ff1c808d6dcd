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

import "github.com/poiesic/shipdex/storage"

// Stores bundles every BadgerDB-backed store sharing one backend.
type Stores struct {
	Ledger      storage.TaskLedger
	Graph       storage.GraphStore
	Vectors     storage.VectorIndex
	Text        storage.TextIndex
	Metadata    storage.MetadataStore
	Checkpoints storage.CheckpointStore
	Backend     *Backend
}

// NewStores creates all stores over a backend opened at filePath, or
// in memory when inMemory is true. Caller must close Backend when done.
func NewStores(filePath string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	ledger, err := NewTaskLedger(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	graph, err := NewGraphStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	vectors, err := NewVectorIndex(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	text, err := NewTextIndex(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	metadata, err := NewMetadataStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	checkpoints, err := NewCheckpointStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Stores{
		Ledger:      ledger,
		Graph:       graph,
		Vectors:     vectors,
		Text:        text,
		Metadata:    metadata,
		Checkpoints: checkpoints,
		Backend:     backend,
	}, nil
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must close Backend when done.
func NewMemoryStores() (*Stores, error) {
	return NewStores("", true)
}
