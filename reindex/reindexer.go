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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
	"github.com/poiesic/shipdex/workflow"
)

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a failed batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds the stored chunks of every document.
type Reindexer struct {
	metadata storage.MetadataStore
	vectors  storage.VectorIndex
	embedder ai.Embedder
	config   *Config
	retry    workflow.RetryPolicy
	progress io.Writer
	iterator *DocumentIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	metadata storage.MetadataStore,
	vectors storage.VectorIndex,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reindexer, error) {
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reindexer{
		metadata: metadata,
		vectors:  vectors,
		embedder: embedder,
		config:   config,
		retry: workflow.RetryPolicy{
			InitialInterval: config.RetryDelay,
			Multiplier:      2.0,
			MaxInterval:     60 * time.Second,
			MaxAttempts:     config.MaxRetries,
		},
		progress: progress,
		iterator: NewDocumentIterator(metadata, config.BatchSize),
	}, nil
}

// Run executes the reindexing operation. Every document's stored chunks
// are re-embedded with the configured embedder and upserted in place.
// Progress is reported to the configured writer.
func (r *Reindexer) Run(ctx context.Context) error {
	all, err := r.metadata.ListDocuments(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	total := len(all)
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindexing of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		for _, doc := range docs {
			if err := r.reindexDocument(ctx, doc); err != nil {
				return fmt.Errorf("failed to reindex %s: %w", doc.DocumentId, err)
			}
		}
		processed += len(docs)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}

// reindexDocument recomputes the vectors for one document's stored
// chunks. Chunk texts are left untouched so passage boundaries stay
// stable across model changes.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *core.Document) error {
	chunks, err := r.vectors.Chunks(ctx, doc.DocumentId)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	return r.retry.Execute(ctx, func() error {
		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			// Embedding runs against a remote service; failures may heal.
			return fmt.Errorf("%w: embed chunks: %v", core.ErrTransientFetch, err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
		return r.vectors.UpsertChunks(ctx, doc.DocumentId, chunks)
	})
}
