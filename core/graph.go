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


package core

import "time"

// Relationship names between graph nodes.
const (
	RelHasSBOM          = "HAS_SBOM"
	RelHasVulnerability = "HAS_VULNERABILITY"
	RelDocumentedIn     = "DOCUMENTED_IN"
	RelMentions         = "MENTIONS"
)

// Edge property keys.
const (
	EdgePropSeverity   = "severity"
	EdgePropDetectedAt = "detected_at"
	EdgePropImportance = "importance"
)

// ContainerImageNode is a container image in the graph, keyed by the
// natural key (image_id, image_tag).
type ContainerImageNode struct {
	Key          ID
	ImageId      string
	ImageTag     string
	Registry     string
	Repository   string
	Architecture string
	OS           string
	SizeBytes    int64
	CreatedAt    string
	Labels       map[string]string
	Layers       []string
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// ContainerImageKey derives the graph key for an image natural key.
func ContainerImageKey(imageId, imageTag string) ID {
	return IDFromContent("img:(" + imageId + "," + imageTag + ")")
}

// SBOMNode is a software bill of materials reference, keyed by its URI.
type SBOMNode struct {
	Key        ID
	Uri        string
	Format     string
	Version    string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// SBOMKey derives the graph key for an SBOM reference.
func SBOMKey(uri string) ID {
	return IDFromContent("sbom:" + uri)
}

// VulnerabilityNode is a known vulnerability, keyed globally by CVE id.
// Many images may link to the same node; it is created once and reused.
type VulnerabilityNode struct {
	Key          ID
	CVEId        string
	Severity     string
	Package      string
	Version      string
	FixedVersion string
	Description  string
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// VulnerabilityKey derives the graph key for a CVE id.
func VulnerabilityKey(cveId string) ID {
	return IDFromContent("vuln:" + cveId)
}

// DocumentNode is a document in the graph, keyed by its document id.
type DocumentNode struct {
	Key        ID
	DocumentId string
	Title      string
	Tags       []string
	SourceKind string
	SourceRef  string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// DocumentKey derives the graph key for a document id.
func DocumentKey(documentId string) ID {
	return IDFromContent("doc:" + documentId)
}

// EntityNode is a coarse entity mentioned by documents, keyed by the
// (type, name) tuple.
type EntityNode struct {
	Key        ID
	Name       string
	Type       string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// EntityKey derives the graph key for an entity tuple.
func EntityKey(name, entityType string) ID {
	return IDFromContent("ent:(" + entityType + "," + name + ")")
}

// GraphEdge is a directed, named relationship between two nodes.
// Edges are keyed by (From, Rel, To), so re-linking the same pair is an
// upsert of the properties, never a duplicate edge.
type GraphEdge struct {
	From      ID
	Rel       string
	To        ID
	Props     map[string]string
	UpdatedAt time.Time
}
