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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/core"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150
)

// ChunkEmbedStage splits normalized text into deterministic passages and
// embeds each one. Chunking depends only on the text and settings, so a
// retried run produces the same chunk set.
type ChunkEmbedStage struct {
	embedder     ai.Embedder
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// ChunkOption configures a ChunkEmbedStage.
type ChunkOption func(*ChunkEmbedStage) error

// WithChunkSize sets the maximum passage size in characters.
func WithChunkSize(size int) ChunkOption {
	return func(c *ChunkEmbedStage) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be positive")
		}
		c.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between consecutive passages.
func WithChunkOverlap(overlap int) ChunkOption {
	return func(c *ChunkEmbedStage) error {
		if overlap < 0 {
			return fmt.Errorf("chunk overlap cannot be negative")
		}
		c.chunkOverlap = overlap
		return nil
	}
}

// NewChunkEmbedStage creates a chunk/embed stage with the given embedder.
func NewChunkEmbedStage(embedder ai.Embedder, opts ...ChunkOption) (*ChunkEmbedStage, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	c := &ChunkEmbedStage{
		embedder:     embedder,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		logger:       slog.Default().With("component", "chunk_embed"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ChunkAndEmbed splits text and embeds every passage. Empty text yields
// zero chunks without error.
func (c *ChunkEmbedStage) ChunkAndEmbed(ctx context.Context, text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
	)
	passages, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	if len(passages) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.EmbedTexts(ctx, passages)
	if err != nil {
		// Embedding runs against a remote service; failures may heal.
		return nil, fmt.Errorf("%w: embed chunks: %v", core.ErrTransientFetch, err)
	}
	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(passages))
	}

	chunks := make([]core.Chunk, len(passages))
	for i, passage := range passages {
		chunks[i] = core.Chunk{
			Index:  i,
			Text:   passage,
			Vector: vectors[i],
		}
	}
	c.logger.Debug("chunked and embedded text", "chunks", len(chunks), "text_length", len(text))
	return chunks, nil
}
