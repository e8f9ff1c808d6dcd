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
	"errors"
	"log/slog"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// VulnerabilityLink is one HAS_VULNERABILITY edge resolved to its node,
// carrying the per-image edge properties. Severity on the link may differ
// from the node when a later scan re-graded the CVE.
type VulnerabilityLink struct {
	Node       *core.VulnerabilityNode
	Severity   string
	DetectedAt string
}

// ContainerArtifactView is a container image with its linked SBOM,
// vulnerability and documentation nodes.
type ContainerArtifactView struct {
	Image           *core.ContainerImageNode
	SBOMs           []*core.SBOMNode
	Vulnerabilities []VulnerabilityLink
	Documents       []*core.DocumentNode
}

// ArtifactReader answers downstream queries over the artifact graph.
type ArtifactReader struct {
	graph  storage.GraphStore
	logger *slog.Logger
}

// NewArtifactReader creates a reader over the graph store.
func NewArtifactReader(graph storage.GraphStore) (*ArtifactReader, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	return &ArtifactReader{
		graph:  graph,
		logger: slog.Default().With("component", "artifact_reader"),
	}, nil
}

// ByRegistry returns artifact views for every image in a registry.
func (r *ArtifactReader) ByRegistry(ctx context.Context, registry string, limit int) ([]*ContainerArtifactView, error) {
	images, err := r.graph.ImagesByRegistry(ctx, registry, limit)
	if err != nil {
		return nil, err
	}
	return r.assemble(ctx, images)
}

// ByRepository returns artifact views for a repository, optionally
// narrowed to one tag. An empty tag matches all tags.
func (r *ArtifactReader) ByRepository(ctx context.Context, repository, tag string, limit int) ([]*ContainerArtifactView, error) {
	images, err := r.graph.ImagesByRepository(ctx, repository, tag, limit)
	if err != nil {
		return nil, err
	}
	return r.assemble(ctx, images)
}

func (r *ArtifactReader) assemble(ctx context.Context, images []*core.ContainerImageNode) ([]*ContainerArtifactView, error) {
	views := make([]*ContainerArtifactView, 0, len(images))
	for _, image := range images {
		view, err := r.view(ctx, image)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// view resolves one image's outbound edges into linked nodes. An edge
// pointing at a vanished node is logged and skipped rather than failing
// the whole query.
func (r *ArtifactReader) view(ctx context.Context, image *core.ContainerImageNode) (*ContainerArtifactView, error) {
	view := &ContainerArtifactView{Image: image}

	edges, err := r.graph.Edges(ctx, image.Key, "")
	if err != nil {
		return nil, err
	}

	for _, edge := range edges {
		switch edge.Rel {
		case core.RelHasSBOM:
			node, err := r.graph.GetSBOM(ctx, edge.To)
			if err != nil {
				if r.skipDangling(err, image, edge) {
					continue
				}
				return nil, err
			}
			view.SBOMs = append(view.SBOMs, node)

		case core.RelHasVulnerability:
			node, err := r.graph.GetVulnerability(ctx, edge.To)
			if err != nil {
				if r.skipDangling(err, image, edge) {
					continue
				}
				return nil, err
			}
			view.Vulnerabilities = append(view.Vulnerabilities, VulnerabilityLink{
				Node:       node,
				Severity:   edge.Props[core.EdgePropSeverity],
				DetectedAt: edge.Props[core.EdgePropDetectedAt],
			})

		case core.RelDocumentedIn:
			node, err := r.graph.GetDocumentNode(ctx, edge.To)
			if err != nil {
				if r.skipDangling(err, image, edge) {
					continue
				}
				return nil, err
			}
			view.Documents = append(view.Documents, node)
		}
	}
	return view, nil
}

func (r *ArtifactReader) skipDangling(err error, image *core.ContainerImageNode, edge *core.GraphEdge) bool {
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("dangling edge target",
			"image", image.ImageTag, "rel", edge.Rel, "to", edge.To)
		return true
	}
	return false
}
