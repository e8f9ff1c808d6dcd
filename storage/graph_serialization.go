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


package storage

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/shipdex/core"
)

// MUS serializers for graph node and edge records.

// MarshalContainerImageNode serializes a ContainerImageNode to bytes.
func MarshalContainerImageNode(node *core.ContainerImageNode) []byte {
	size := varint.Uint64.Size(uint64(node.Key)) +
		ord.String.Size(node.ImageId) +
		ord.String.Size(node.ImageTag) +
		ord.String.Size(node.Registry) +
		ord.String.Size(node.Repository) +
		ord.String.Size(node.Architecture) +
		ord.String.Size(node.OS) +
		varint.Int64.Size(node.SizeBytes) +
		ord.String.Size(node.CreatedAt) +
		sizeStringMap(node.Labels) +
		sizeStringSlice(node.Layers) +
		sizeTime(node.InsertedAt) +
		sizeTime(node.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(node.Key), bs)
	n += ord.String.Marshal(node.ImageId, bs[n:])
	n += ord.String.Marshal(node.ImageTag, bs[n:])
	n += ord.String.Marshal(node.Registry, bs[n:])
	n += ord.String.Marshal(node.Repository, bs[n:])
	n += ord.String.Marshal(node.Architecture, bs[n:])
	n += ord.String.Marshal(node.OS, bs[n:])
	n += varint.Int64.Marshal(node.SizeBytes, bs[n:])
	n += ord.String.Marshal(node.CreatedAt, bs[n:])
	n += marshalStringMap(node.Labels, bs[n:])
	n += marshalStringSlice(node.Layers, bs[n:])
	n += marshalTime(node.InsertedAt, bs[n:])
	marshalTime(node.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalContainerImageNode deserializes a ContainerImageNode from bytes.
func UnmarshalContainerImageNode(data []byte) (*core.ContainerImageNode, error) {
	node := &core.ContainerImageNode{}
	var n, n1 int
	var err error
	var key uint64
	if key, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	node.Key = core.ID(key)
	if node.ImageId, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.ImageTag, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Registry, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Repository, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Architecture, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.OS, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.SizeBytes, n1, err = varint.Int64.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.CreatedAt, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Labels, n1, err = unmarshalStringMap(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Layers, n1, err = unmarshalStringSlice(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.InsertedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalSBOMNode serializes an SBOMNode to bytes.
func MarshalSBOMNode(node *core.SBOMNode) []byte {
	size := varint.Uint64.Size(uint64(node.Key)) +
		ord.String.Size(node.Uri) +
		ord.String.Size(node.Format) +
		ord.String.Size(node.Version) +
		sizeTime(node.InsertedAt) +
		sizeTime(node.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(node.Key), bs)
	n += ord.String.Marshal(node.Uri, bs[n:])
	n += ord.String.Marshal(node.Format, bs[n:])
	n += ord.String.Marshal(node.Version, bs[n:])
	n += marshalTime(node.InsertedAt, bs[n:])
	marshalTime(node.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalSBOMNode deserializes an SBOMNode from bytes.
func UnmarshalSBOMNode(data []byte) (*core.SBOMNode, error) {
	node := &core.SBOMNode{}
	var n, n1 int
	var err error
	var key uint64
	if key, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	node.Key = core.ID(key)
	if node.Uri, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Format, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Version, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.InsertedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalVulnerabilityNode serializes a VulnerabilityNode to bytes.
func MarshalVulnerabilityNode(node *core.VulnerabilityNode) []byte {
	size := varint.Uint64.Size(uint64(node.Key)) +
		ord.String.Size(node.CVEId) +
		ord.String.Size(node.Severity) +
		ord.String.Size(node.Package) +
		ord.String.Size(node.Version) +
		ord.String.Size(node.FixedVersion) +
		ord.String.Size(node.Description) +
		sizeTime(node.InsertedAt) +
		sizeTime(node.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(node.Key), bs)
	n += ord.String.Marshal(node.CVEId, bs[n:])
	n += ord.String.Marshal(node.Severity, bs[n:])
	n += ord.String.Marshal(node.Package, bs[n:])
	n += ord.String.Marshal(node.Version, bs[n:])
	n += ord.String.Marshal(node.FixedVersion, bs[n:])
	n += ord.String.Marshal(node.Description, bs[n:])
	n += marshalTime(node.InsertedAt, bs[n:])
	marshalTime(node.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalVulnerabilityNode deserializes a VulnerabilityNode from bytes.
func UnmarshalVulnerabilityNode(data []byte) (*core.VulnerabilityNode, error) {
	node := &core.VulnerabilityNode{}
	var n, n1 int
	var err error
	var key uint64
	if key, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	node.Key = core.ID(key)
	if node.CVEId, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Severity, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Package, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Version, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.FixedVersion, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Description, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.InsertedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalDocumentNode serializes a DocumentNode to bytes.
func MarshalDocumentNode(node *core.DocumentNode) []byte {
	size := varint.Uint64.Size(uint64(node.Key)) +
		ord.String.Size(node.DocumentId) +
		ord.String.Size(node.Title) +
		sizeStringSlice(node.Tags) +
		ord.String.Size(node.SourceKind) +
		ord.String.Size(node.SourceRef) +
		sizeTime(node.InsertedAt) +
		sizeTime(node.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(node.Key), bs)
	n += ord.String.Marshal(node.DocumentId, bs[n:])
	n += ord.String.Marshal(node.Title, bs[n:])
	n += marshalStringSlice(node.Tags, bs[n:])
	n += ord.String.Marshal(node.SourceKind, bs[n:])
	n += ord.String.Marshal(node.SourceRef, bs[n:])
	n += marshalTime(node.InsertedAt, bs[n:])
	marshalTime(node.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalDocumentNode deserializes a DocumentNode from bytes.
func UnmarshalDocumentNode(data []byte) (*core.DocumentNode, error) {
	node := &core.DocumentNode{}
	var n, n1 int
	var err error
	var key uint64
	if key, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	node.Key = core.ID(key)
	if node.DocumentId, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Title, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Tags, n1, err = unmarshalStringSlice(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.SourceKind, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.SourceRef, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.InsertedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalEntityNode serializes an EntityNode to bytes.
func MarshalEntityNode(node *core.EntityNode) []byte {
	size := varint.Uint64.Size(uint64(node.Key)) +
		ord.String.Size(node.Name) +
		ord.String.Size(node.Type) +
		sizeTime(node.InsertedAt) +
		sizeTime(node.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(node.Key), bs)
	n += ord.String.Marshal(node.Name, bs[n:])
	n += ord.String.Marshal(node.Type, bs[n:])
	n += marshalTime(node.InsertedAt, bs[n:])
	marshalTime(node.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalEntityNode deserializes an EntityNode from bytes.
func UnmarshalEntityNode(data []byte) (*core.EntityNode, error) {
	node := &core.EntityNode{}
	var n, n1 int
	var err error
	var key uint64
	if key, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	node.Key = core.ID(key)
	if node.Name, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.Type, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.InsertedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if node.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalGraphEdge serializes a GraphEdge to bytes.
func MarshalGraphEdge(edge *core.GraphEdge) []byte {
	size := varint.Uint64.Size(uint64(edge.From)) +
		ord.String.Size(edge.Rel) +
		varint.Uint64.Size(uint64(edge.To)) +
		sizeStringMap(edge.Props) +
		sizeTime(edge.UpdatedAt)
	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(edge.From), bs)
	n += ord.String.Marshal(edge.Rel, bs[n:])
	n += varint.Uint64.Marshal(uint64(edge.To), bs[n:])
	n += marshalStringMap(edge.Props, bs[n:])
	marshalTime(edge.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalGraphEdge deserializes a GraphEdge from bytes.
func UnmarshalGraphEdge(data []byte) (*core.GraphEdge, error) {
	edge := &core.GraphEdge{}
	var n, n1 int
	var err error
	var v uint64
	if v, n, err = varint.Uint64.Unmarshal(data); err != nil {
		return nil, err
	}
	edge.From = core.ID(v)
	if edge.Rel, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if v, n1, err = varint.Uint64.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	edge.To = core.ID(v)
	n += n1
	if edge.Props, n1, err = unmarshalStringMap(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if edge.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return edge, nil
}
