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
	"sort"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/shipdex/core"
)

// MUS serializers for workflow checkpoint records, including the nested
// submission and normalized document carried across suspension points.

func sizeVulnerability(v *core.Vulnerability) int {
	return ord.String.Size(v.Severity) +
		ord.String.Size(v.Package) +
		ord.String.Size(v.Version) +
		ord.String.Size(v.FixedVersion) +
		ord.String.Size(v.Description)
}

func marshalVulnerability(v *core.Vulnerability, bs []byte) (n int) {
	n = ord.String.Marshal(v.Severity, bs)
	n += ord.String.Marshal(v.Package, bs[n:])
	n += ord.String.Marshal(v.Version, bs[n:])
	n += ord.String.Marshal(v.FixedVersion, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	return n
}

func unmarshalVulnerability(bs []byte) (v core.Vulnerability, n int, err error) {
	var n1 int
	if v.Severity, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Package, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n, err
	}
	n += n1
	if v.Version, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n, err
	}
	n += n1
	if v.FixedVersion, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n, err
	}
	n += n1
	if v.Description, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n, err
	}
	n += n1
	return v, n, nil
}

func sizeVulnerabilityMap(m map[string]core.Vulnerability) int {
	size := varint.Int.Size(len(m))
	for cveId, v := range m {
		size += ord.String.Size(cveId) + sizeVulnerability(&v)
	}
	return size
}

func marshalVulnerabilityMap(m map[string]core.Vulnerability, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	ids := make([]string, 0, len(m))
	for cveId := range m {
		ids = append(ids, cveId)
	}
	sort.Strings(ids)
	for _, cveId := range ids {
		v := m[cveId]
		n += ord.String.Marshal(cveId, bs[n:])
		n += marshalVulnerability(&v, bs[n:])
	}
	return n
}

func unmarshalVulnerabilityMap(bs []byte) (m map[string]core.Vulnerability, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	m = make(map[string]core.Vulnerability, length)
	var n1 int
	for i := 0; i < length; i++ {
		var cveId string
		var v core.Vulnerability
		cveId, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = unmarshalVulnerability(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[cveId] = v
	}
	return m, n, nil
}

func sizeContainerMetadata(c *core.ContainerMetadata) int {
	present := c != nil
	size := ord.Bool.Size(present)
	if !present {
		return size
	}
	return size +
		ord.String.Size(c.ImageId) +
		ord.String.Size(c.ImageTag) +
		ord.String.Size(c.Registry) +
		ord.String.Size(c.Repository) +
		ord.String.Size(c.SBOMUri) +
		ord.String.Size(c.SBOMFormat) +
		ord.String.Size(c.CreatedAt) +
		varint.Int64.Size(c.SizeBytes) +
		ord.String.Size(c.Architecture) +
		ord.String.Size(c.OS) +
		sizeStringSlice(c.Layers) +
		sizeStringMap(c.Labels) +
		sizeStringMap(c.EnvVars) +
		sizeVulnerabilityMap(c.Vulnerabilities)
}

func marshalContainerMetadata(c *core.ContainerMetadata, bs []byte) (n int) {
	n = ord.Bool.Marshal(c != nil, bs)
	if c == nil {
		return n
	}
	n += ord.String.Marshal(c.ImageId, bs[n:])
	n += ord.String.Marshal(c.ImageTag, bs[n:])
	n += ord.String.Marshal(c.Registry, bs[n:])
	n += ord.String.Marshal(c.Repository, bs[n:])
	n += ord.String.Marshal(c.SBOMUri, bs[n:])
	n += ord.String.Marshal(c.SBOMFormat, bs[n:])
	n += ord.String.Marshal(c.CreatedAt, bs[n:])
	n += varint.Int64.Marshal(c.SizeBytes, bs[n:])
	n += ord.String.Marshal(c.Architecture, bs[n:])
	n += ord.String.Marshal(c.OS, bs[n:])
	n += marshalStringSlice(c.Layers, bs[n:])
	n += marshalStringMap(c.Labels, bs[n:])
	n += marshalStringMap(c.EnvVars, bs[n:])
	n += marshalVulnerabilityMap(c.Vulnerabilities, bs[n:])
	return n
}

func unmarshalContainerMetadata(bs []byte) (c *core.ContainerMetadata, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return nil, n, err
	}
	c = &core.ContainerMetadata{}
	var n1 int
	if c.ImageId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.ImageTag, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Registry, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Repository, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.SBOMUri, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.SBOMFormat, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.CreatedAt, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.SizeBytes, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Architecture, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.OS, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Layers, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Labels, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.EnvVars, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if c.Vulnerabilities, n1, err = unmarshalVulnerabilityMap(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	return c, n, nil
}

func sizeSubmission(s *core.Submission) int {
	return ord.String.Size(string(s.Source)) +
		ord.String.Size(s.Title) +
		ord.String.Size(s.MimeType) +
		sizeStringSlice(s.Tags) +
		sizeStringMap(s.Metadata) +
		ord.String.Size(s.DocumentBytes) +
		ord.String.Size(s.BlobRef) +
		ord.String.Size(s.URL) +
		sizeContainerMetadata(s.Container)
}

func marshalSubmission(s *core.Submission, bs []byte) (n int) {
	n = ord.String.Marshal(string(s.Source), bs)
	n += ord.String.Marshal(s.Title, bs[n:])
	n += ord.String.Marshal(s.MimeType, bs[n:])
	n += marshalStringSlice(s.Tags, bs[n:])
	n += marshalStringMap(s.Metadata, bs[n:])
	n += ord.String.Marshal(s.DocumentBytes, bs[n:])
	n += ord.String.Marshal(s.BlobRef, bs[n:])
	n += ord.String.Marshal(s.URL, bs[n:])
	n += marshalContainerMetadata(s.Container, bs[n:])
	return n
}

func unmarshalSubmission(bs []byte) (s core.Submission, n int, err error) {
	var n1 int
	var str string
	if str, n, err = ord.String.Unmarshal(bs); err != nil {
		return s, n, err
	}
	s.Source = core.SourceKind(str)
	if s.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.MimeType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.Tags, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.Metadata, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.DocumentBytes, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.BlobRef, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.URL, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	if s.Container, n1, err = unmarshalContainerMetadata(bs[n:]); err != nil {
		return s, n, err
	}
	n += n1
	return s, n, nil
}

func sizeEntitySlice(entities []core.Entity) int {
	size := varint.Int.Size(len(entities))
	for _, e := range entities {
		size += ord.String.Size(e.Name) + ord.String.Size(e.Type)
	}
	return size
}

func marshalEntitySlice(entities []core.Entity, bs []byte) (n int) {
	n = varint.Int.Marshal(len(entities), bs)
	for _, e := range entities {
		n += ord.String.Marshal(e.Name, bs[n:])
		n += ord.String.Marshal(e.Type, bs[n:])
	}
	return n
}

func unmarshalEntitySlice(bs []byte) (entities []core.Entity, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	entities = make([]core.Entity, length)
	var n1 int
	for i := 0; i < length; i++ {
		entities[i].Name, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		entities[i].Type, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return entities, n, nil
}

func sizeNormalizedDocument(d *core.NormalizedDocument) int {
	present := d != nil
	size := ord.Bool.Size(present)
	if !present {
		return size
	}
	return size +
		sizeDocument(&d.Document) +
		ord.String.Size(d.Text) +
		sizeEntitySlice(d.Entities) +
		sizeContainerMetadata(d.Container) +
		sizeBytes(d.Raw)
}

func marshalNormalizedDocument(d *core.NormalizedDocument, bs []byte) (n int) {
	n = ord.Bool.Marshal(d != nil, bs)
	if d == nil {
		return n
	}
	n += marshalDocumentTo(&d.Document, bs[n:])
	n += ord.String.Marshal(d.Text, bs[n:])
	n += marshalEntitySlice(d.Entities, bs[n:])
	n += marshalContainerMetadata(d.Container, bs[n:])
	n += marshalBytes(d.Raw, bs[n:])
	return n
}

func unmarshalNormalizedDocument(bs []byte) (d *core.NormalizedDocument, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return nil, n, err
	}
	d = &core.NormalizedDocument{}
	var n1 int
	if d.Document, n1, err = unmarshalDocumentFrom(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if d.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if d.Entities, n1, err = unmarshalEntitySlice(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if d.Container, n1, err = unmarshalContainerMetadata(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	if d.Raw, n1, err = unmarshalBytes(bs[n:]); err != nil {
		return nil, n, err
	}
	n += n1
	return d, n, nil
}

// MarshalCheckpoint serializes a WorkflowCheckpoint to bytes.
func MarshalCheckpoint(cp *core.WorkflowCheckpoint) []byte {
	size := ord.String.Size(cp.TaskId) +
		varint.Int.Size(int(cp.Stage)) +
		varint.Int.Size(cp.Attempt) +
		sizeSubmission(&cp.Submission) +
		sizeBytes(cp.Content) +
		sizeNormalizedDocument(cp.Normalized) +
		varint.Int.Size(len(cp.Chunks)) +
		sizeTime(cp.UpdatedAt)
	for i := range cp.Chunks {
		size += sizeChunk(&cp.Chunks[i])
	}
	bs := make([]byte, size)
	n := ord.String.Marshal(cp.TaskId, bs)
	n += varint.Int.Marshal(int(cp.Stage), bs[n:])
	n += varint.Int.Marshal(cp.Attempt, bs[n:])
	n += marshalSubmission(&cp.Submission, bs[n:])
	n += marshalBytes(cp.Content, bs[n:])
	n += marshalNormalizedDocument(cp.Normalized, bs[n:])
	n += varint.Int.Marshal(len(cp.Chunks), bs[n:])
	for i := range cp.Chunks {
		n += marshalChunkTo(&cp.Chunks[i], bs[n:])
	}
	marshalTime(cp.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalCheckpoint deserializes a WorkflowCheckpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.WorkflowCheckpoint, error) {
	cp := &core.WorkflowCheckpoint{}
	var n, n1 int
	var err error
	if cp.TaskId, n, err = ord.String.Unmarshal(data); err != nil {
		return nil, err
	}
	var stage int
	if stage, n1, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	cp.Stage = core.Stage(stage)
	n += n1
	if cp.Attempt, n1, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if cp.Submission, n1, err = unmarshalSubmission(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if cp.Content, n1, err = unmarshalBytes(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if cp.Normalized, n1, err = unmarshalNormalizedDocument(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	var count int
	if count, n1, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if count > 0 {
		cp.Chunks = make([]core.Chunk, count)
		for i := 0; i < count; i++ {
			if cp.Chunks[i], n1, err = unmarshalChunkFrom(data[n:]); err != nil {
				return nil, err
			}
			n += n1
		}
	}
	if cp.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return cp, nil
}
