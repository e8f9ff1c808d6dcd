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


package shipdex

import (
	"log/slog"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/ai/openai"
	"github.com/poiesic/shipdex/ingestion"
	"github.com/poiesic/shipdex/query"
	"github.com/poiesic/shipdex/storage"
	"github.com/poiesic/shipdex/storage/badger"
	"github.com/poiesic/shipdex/workflow"
)

// System wires the stores, AI provider and pipeline stages together for
// the command surface. Library callers who need different wiring can
// assemble the packages directly.
type System struct {
	stores   *badger.Stores
	blobs    storage.BlobStore
	provider ai.Provider
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	blobs    storage.BlobStore
}

// WithAIConfig overrides the AI provider configuration.
func WithAIConfig(cfg *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = cfg
	}
}

// WithBlobStore overrides the blob store. Default is an in-process
// memory store; production deployments pass the MinIO-backed one.
func WithBlobStore(blobs storage.BlobStore) SystemOption {
	return func(o *systemOptions) {
		o.blobs = blobs
	}
}

// NewSystem opens the badger-backed stores at filePath and connects the
// AI provider.
func NewSystem(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	stores, err := badger.NewStores(filePath, false)
	if err != nil {
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		stores.Backend.Close()
		return nil, err
	}

	blobs := options.blobs
	if blobs == nil {
		blobs = storage.NewMemoryBlobStore()
	}

	return &System{
		stores:   stores,
		blobs:    blobs,
		provider: provider,
		logger:   slog.Default(),
	}, nil
}

func (s *System) Close() error {
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.stores.Backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *System) Ledger() storage.TaskLedger {
	return s.stores.Ledger
}

func (s *System) Graph() storage.GraphStore {
	return s.stores.Graph
}

func (s *System) Blobs() storage.BlobStore {
	return s.blobs
}

// NewEngine assembles the workflow engine over the system's stores.
func (s *System) NewEngine(opts ...workflow.EngineOption) (*workflow.Engine, error) {
	resolver, err := ingestion.NewContentResolver(s.blobs)
	if err != nil {
		return nil, err
	}
	normalizer := ingestion.NewNormalizer(s.provider.EntityExtractor())
	chunker, err := ingestion.NewChunkEmbedStage(s.provider.Embedder())
	if err != nil {
		return nil, err
	}
	writer, err := ingestion.NewMultiStoreWriter(
		s.stores.Graph, s.stores.Vectors, s.stores.Text, s.stores.Metadata, s.blobs)
	if err != nil {
		return nil, err
	}
	return workflow.NewEngine(
		s.stores.Ledger, s.stores.Checkpoints,
		resolver, normalizer, chunker, writer, opts...)
}

// NewArtifactReader creates the graph query boundary.
func (s *System) NewArtifactReader() (*query.ArtifactReader, error) {
	return query.NewArtifactReader(s.stores.Graph)
}

// NewDocumentSearcher creates the hybrid document search boundary.
func (s *System) NewDocumentSearcher(opts ...query.Option) (*query.DocumentSearcher, error) {
	return query.NewDocumentSearcher(
		s.stores.Vectors, s.stores.Text, s.stores.Metadata, s.provider.Embedder(), opts...)
}
