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


// Package storage defines the store boundaries the ingestion core writes
// into: the task ledger, graph store, vector index, full-text index,
// metadata store, blob store and workflow checkpoint store.
//
// Each interface is an explicit service boundary with its own storage,
// accessed only through its contract. Constructors in implementation
// packages return these interfaces to keep callers decoupled from the
// backend:
//
//	ledger := badger.NewTaskLedger(backend)
//	blobs, err := minio.NewBlobStore(ctx, cfg)
//
// Consistency across stores is never transactional. Every write is an
// idempotent upsert on a natural key, so retrying a partially completed
// multi-store write converges instead of duplicating.
//
// Values are serialized with the MUS binary format (mus-go). All
// implementations must be safe for concurrent use.
package storage
