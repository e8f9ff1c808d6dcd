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


package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// minSimilarity is the cosine threshold below which a vector match is
// considered noise.
const minSimilarity = 0.60

// DocumentHit is one search result with its combined relevance score.
type DocumentHit struct {
	Document *core.Document
	Score    float32
}

// DocumentSearcher provides hybrid semantic and keyword search over
// ingested documents.
type DocumentSearcher struct {
	vectors  storage.VectorIndex
	text     storage.TextIndex
	metadata storage.MetadataStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a DocumentSearcher.
type Option func(*DocumentSearcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *DocumentSearcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewDocumentSearcher creates a new searcher.
func NewDocumentSearcher(
	vectors storage.VectorIndex,
	text storage.TextIndex,
	metadata storage.MetadataStore,
	embedder ai.Embedder,
	opts ...Option,
) (*DocumentSearcher, error) {
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if text == nil {
		return nil, ErrTextIndexRequired
	}
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &DocumentSearcher{
		vectors:  vectors,
		text:     text,
		metadata: metadata,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindDocuments searches for documents relevant to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *DocumentSearcher) FindDocuments(ctx context.Context, query string, maxHits int) ([]*DocumentHit, error) {
	return s.FindDocumentsWithMonitor(ctx, query, maxHits, nil)
}

// FindDocumentsWithMonitor searches for documents relevant to the query
// with monitoring. The monitor receives callbacks at each stage of the
// search process. Returns up to maxHits results, ranked by relevance score.
func (s *DocumentSearcher) FindDocumentsWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*DocumentHit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	// 1. Semantic search over chunk vectors
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.vectors.Search(ctx, embedding, minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	// Keep the best chunk score per document.
	semanticScores := make(map[string]float32)
	semanticIds := make([]string, 0, len(matches))
	for _, match := range matches {
		if score, ok := semanticScores[match.DocumentId]; !ok || match.Score > score {
			if !ok {
				semanticIds = append(semanticIds, match.DocumentId)
			}
			semanticScores[match.DocumentId] = match.Score
		}
	}
	monitor.AfterSemanticSearch(semanticIds)

	// 2. Keyword search over the full-text index
	keywordIds, err := s.text.Search(ctx, query, maxHits)
	if err != nil {
		s.logger.Error("error querying full-text index", "err", err)
		return nil, err
	}
	keywordSet := make(map[string]bool, len(keywordIds))
	for _, docId := range keywordIds {
		keywordSet[docId] = true
	}
	monitor.AfterKeywordSearch(keywordIds)

	// 3. Combine and score
	allIds := make(map[string]bool)
	for docId := range semanticScores {
		allIds[docId] = true
	}
	for docId := range keywordSet {
		allIds[docId] = true
	}

	if len(allIds) == 0 {
		return []*DocumentHit{}, nil
	}

	results := make([]*DocumentHit, 0, len(allIds))
	for docId := range allIds {
		doc, err := s.metadata.GetDocument(ctx, docId)
		if err != nil {
			s.logger.Warn("indexed document missing from metadata store", "document_id", docId, "err", err)
			continue
		}

		similarityScore, inSemantic := semanticScores[docId]
		inKeyword := keywordSet[docId]

		var score float32
		switch {
		case inSemantic && inKeyword:
			// In both: boost by 1.5x, weighted by similarity score
			score = 1.5 * similarityScore
			monitor.SemanticAndKeywordHit(docId)
		case inKeyword:
			score = 1.2
			monitor.KeywordHit(docId)
		default:
			score = similarityScore
			monitor.SemanticHit(docId)
		}

		if containsAllQueryWords(doc.Title, query) {
			score += 0.3
		}

		results = append(results, &DocumentHit{Document: doc, Score: score})
	}

	// Sort by score descending
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}

// containsAllQueryWords reports whether every word of the query appears
// in the text, case-insensitively.
func containsAllQueryWords(text, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, word := range words {
		if !strings.Contains(lower, word) {
			return false
		}
	}
	return true
}
