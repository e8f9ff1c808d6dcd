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
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// MultiStoreWriter fans a normalized document out across the stores.
// Every sub-write is an idempotent natural-key upsert, so the whole
// write can be retried from the top after a partial failure without
// duplicating state.
type MultiStoreWriter struct {
	graph    storage.GraphStore
	vectors  storage.VectorIndex
	text     storage.TextIndex
	metadata storage.MetadataStore
	blobs    storage.BlobStore
	clock    storage.Clock
	logger   *slog.Logger
}

// NewMultiStoreWriter creates a writer over the five stores.
func NewMultiStoreWriter(
	graph storage.GraphStore,
	vectors storage.VectorIndex,
	text storage.TextIndex,
	metadata storage.MetadataStore,
	blobs storage.BlobStore,
) (*MultiStoreWriter, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if text == nil {
		return nil, ErrTextIndexRequired
	}
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	return &MultiStoreWriter{
		graph:    graph,
		vectors:  vectors,
		text:     text,
		metadata: metadata,
		blobs:    blobs,
		clock:    time.Now,
		logger:   slog.Default().With("component", "multi_store_writer"),
	}, nil
}

// Write persists a normalized document and its chunks to every store.
// On failure the error names the store that rejected the write; the
// caller retries the whole fan-out.
func (w *MultiStoreWriter) Write(ctx context.Context, norm *core.NormalizedDocument, chunks []core.Chunk) (string, error) {
	doc := norm.Document
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = w.clock().UTC()

	// Archive the raw payload first so the metadata record can carry
	// its location.
	if len(norm.Raw) > 0 {
		uri, err := w.blobs.Put(ctx, "raw/"+doc.DocumentId, norm.Raw, doc.MimeType)
		if err != nil {
			return "", wrapStoreErr("blob", doc.DocumentId, err)
		}
		doc.BlobUri = uri
	}

	if err := w.writeGraph(ctx, norm, &doc); err != nil {
		return "", err
	}

	if err := w.vectors.UpsertChunks(ctx, doc.DocumentId, chunks); err != nil {
		return "", wrapStoreErr("vector", doc.DocumentId, err)
	}

	if err := w.text.IndexDocument(ctx, doc.DocumentId, doc.Title, norm.Text, doc.Tags); err != nil {
		return "", wrapStoreErr("fulltext", doc.DocumentId, err)
	}

	if err := w.metadata.PutDocument(ctx, &doc); err != nil {
		return "", wrapStoreErr("metadata", doc.DocumentId, err)
	}

	w.logger.Info("document written to all stores",
		"document_id", doc.DocumentId,
		"source", doc.SourceKind,
		"chunks", len(chunks))
	return doc.DocumentId, nil
}

func (w *MultiStoreWriter) writeGraph(ctx context.Context, norm *core.NormalizedDocument, doc *core.Document) error {
	docNode := &core.DocumentNode{
		DocumentId: doc.DocumentId,
		Title:      doc.Title,
		Tags:       doc.Tags,
		SourceKind: string(doc.SourceKind),
		SourceRef:  doc.SourceRef,
	}
	if err := w.graph.UpsertDocumentNode(ctx, docNode); err != nil {
		return wrapStoreErr("graph", doc.DocumentId, err)
	}

	if norm.Container != nil {
		if err := w.writeContainerGraph(ctx, norm.Container, docNode); err != nil {
			return err
		}
	}

	for _, entity := range norm.Entities {
		entNode := &core.EntityNode{Name: entity.Name, Type: entity.Type}
		if err := w.graph.UpsertEntity(ctx, entNode); err != nil {
			return wrapStoreErr("graph", entity.Name, err)
		}
		if err := w.graph.Link(ctx, docNode.Key, core.RelMentions, entNode.Key, nil); err != nil {
			return wrapStoreErr("graph", entity.Name, err)
		}
	}
	return nil
}

func (w *MultiStoreWriter) writeContainerGraph(ctx context.Context, meta *core.ContainerMetadata, docNode *core.DocumentNode) error {
	image := &core.ContainerImageNode{
		ImageId:      meta.ImageId,
		ImageTag:     meta.ImageTag,
		Registry:     meta.Registry,
		Repository:   meta.Repository,
		Architecture: meta.Architecture,
		OS:           meta.OS,
		SizeBytes:    meta.SizeBytes,
		CreatedAt:    meta.CreatedAt,
		Labels:       meta.Labels,
		Layers:       meta.Layers,
	}
	if err := w.graph.UpsertContainerImage(ctx, image); err != nil {
		return wrapStoreErr("graph", meta.Tuple(), err)
	}

	if err := w.graph.Link(ctx, image.Key, core.RelDocumentedIn, docNode.Key, nil); err != nil {
		return wrapStoreErr("graph", meta.Tuple(), err)
	}

	if meta.SBOMUri != "" {
		sbom := &core.SBOMNode{Uri: meta.SBOMUri, Format: meta.SBOMFormat}
		if err := w.graph.UpsertSBOM(ctx, sbom); err != nil {
			return wrapStoreErr("graph", meta.SBOMUri, err)
		}
		if err := w.graph.Link(ctx, image.Key, core.RelHasSBOM, sbom.Key, nil); err != nil {
			return wrapStoreErr("graph", meta.SBOMUri, err)
		}
	}

	detectedAt := w.clock().UTC().Format(time.RFC3339)
	for cveId, vuln := range meta.Vulnerabilities {
		severity := core.NormalizeSeverity(vuln.Severity)
		node := &core.VulnerabilityNode{
			CVEId:        cveId,
			Severity:     severity,
			Package:      vuln.Package,
			Version:      vuln.Version,
			FixedVersion: vuln.FixedVersion,
			Description:  vuln.Description,
		}
		if err := w.graph.UpsertVulnerability(ctx, node); err != nil {
			return wrapStoreErr("graph", cveId, err)
		}
		props := map[string]string{
			core.EdgePropSeverity:   severity,
			core.EdgePropDetectedAt: detectedAt,
		}
		if err := w.graph.Link(ctx, image.Key, core.RelHasVulnerability, node.Key, props); err != nil {
			return wrapStoreErr("graph", cveId, err)
		}
	}
	return nil
}

// wrapStoreErr tags an error with the failing store unless it already
// carries that context.
func wrapStoreErr(store, key string, err error) error {
	var swe *core.StoreWriteError
	if errors.As(err, &swe) {
		return err
	}
	return core.NewStoreWriteError(store, key, err)
}
