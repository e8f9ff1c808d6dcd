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
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shipdex/storage"
)

// Stop words filtered out of postings and queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Colons are key separators; split compound tokens like repo:tag
		// into their parts so both sides are searchable.
		for _, part := range strings.Split(cleaned, ":") {
			if part != "" && !stopWords[part] {
				filtered = append(filtered, part)
			}
		}
	}

	return filtered
}

// textIndex is the BadgerDB-backed implementation of storage.TextIndex.
// Term postings carry a reverse index per document so re-indexing the
// same document replaces its postings instead of accreting them.
type textIndex struct {
	backend *Backend
	logger  *slog.Logger
}

// NewTextIndex creates a full-text index backed by the given backend.
func NewTextIndex(backend *Backend) (storage.TextIndex, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &textIndex{
		backend: backend,
		logger:  slog.Default().With("component", "text_index"),
	}, nil
}

func (t *textIndex) IndexDocument(ctx context.Context, documentId, title, text string, tags []string) error {
	if t.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	terms := make(map[string]bool)
	for _, term := range tokenizeAndFilter(title) {
		terms[term] = true
	}
	for _, term := range tokenizeAndFilter(text) {
		terms[term] = true
	}
	for _, tag := range tags {
		for _, term := range tokenizeAndFilter(tag) {
			terms[term] = true
		}
	}

	return t.backend.WithUpdate(func(tx *badger.Txn) error {
		stale, err := docTerms(tx, documentId)
		if err != nil {
			return err
		}
		for _, term := range stale {
			if terms[term] {
				continue
			}
			if err := tx.Delete(makeTermKey(term, documentId)); err != nil {
				return err
			}
			if err := tx.Delete(makeTextDocKey(documentId, term)); err != nil {
				return err
			}
		}

		for term := range terms {
			if err := tx.Set(makeTermKey(term, documentId), nil); err != nil {
				return err
			}
			if err := tx.Set(makeTextDocKey(documentId, term), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (t *textIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if t.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	queryTerms := tokenizeAndFilter(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	// Rank by number of matched query terms.
	hits := make(map[string]int)
	err := t.backend.WithTx(func(tx *badger.Txn) error {
		for _, term := range queryTerms {
			prefix := makeTermPrefix(term)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				docId := string(iter.Item().Key()[len(prefix):])
				hits[docId]++
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		docId string
		score int
	}
	results := make([]ranked, 0, len(hits))
	for docId, score := range hits {
		results = append(results, ranked{docId, score})
	}
	slices.SortFunc(results, func(a, b ranked) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return strings.Compare(a.docId, b.docId)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	docIds := make([]string, len(results))
	for i, r := range results {
		docIds[i] = r.docId
	}
	return docIds, nil
}

func (t *textIndex) DeleteDocument(ctx context.Context, documentId string) error {
	if t.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return t.backend.WithUpdate(func(tx *badger.Txn) error {
		terms, err := docTerms(tx, documentId)
		if err != nil {
			return err
		}
		for _, term := range terms {
			if err := tx.Delete(makeTermKey(term, documentId)); err != nil {
				return err
			}
			if err := tx.Delete(makeTextDocKey(documentId, term)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// docTerms lists the currently indexed terms for a document via the
// reverse postings.
func docTerms(tx *badger.Txn, documentId string) ([]string, error) {
	var terms []string
	prefix := makeTextDocPrefix(documentId)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		terms = append(terms, string(iter.Item().Key()[len(prefix):]))
	}
	return terms, nil
}
