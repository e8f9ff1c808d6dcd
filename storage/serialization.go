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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/shipdex/core"
)

// MUS serializers for every record persisted to the badger-backed stores.
// The type set is small and fixed, so the serializers are composed by hand
// from mus-go primitives rather than generated.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(v), err
}

// time encoding: zero flag + microseconds since epoch.

func sizeTime(t time.Time) int {
	size := ord.Bool.Size(t.IsZero())
	if !t.IsZero() {
		size += varint.Int64.Size(t.UnixMicro())
	}
	return size
}

func marshalTime(t time.Time, bs []byte) (n int) {
	n = ord.Bool.Marshal(t.IsZero(), bs)
	if !t.IsZero() {
		n += varint.Int64.Marshal(t.UnixMicro(), bs[n:])
	}
	return n
}

func unmarshalTime(bs []byte) (t time.Time, n int, err error) {
	zero, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || zero {
		return time.Time{}, n, err
	}
	var n1 int
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

// []string

func sizeStringSlice(ss []string) int {
	size := varint.Int.Size(len(ss))
	for _, s := range ss {
		size += ord.String.Size(s)
	}
	return size
}

func marshalStringSlice(ss []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func unmarshalStringSlice(bs []byte) (ss []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	ss = make([]string, length)
	var n1 int
	for i := 0; i < length; i++ {
		ss[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return ss, n, nil
}

// map[string]string, marshaled in sorted key order so identical maps
// produce identical bytes.

func sizeStringMap(m map[string]string) int {
	size := varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalStringMap(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length == 0 {
		return nil, n, nil
	}
	m = make(map[string]string, length)
	var n1 int
	for i := 0; i < length; i++ {
		var k, v string
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

// []float32 embedding vectors

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

// []byte

func sizeBytes(b []byte) int {
	return varint.Int.Size(len(b)) + len(b)
}

func marshalBytes(b []byte, bs []byte) (n int) {
	n = varint.Int.Marshal(len(b), bs)
	n += copy(bs[n:], b)
	return n
}

func unmarshalBytes(bs []byte) (b []byte, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	if length > len(bs)-n {
		return nil, n, ErrSerializationFailed
	}
	b = make([]byte, length)
	copy(b, bs[n:n+length])
	return b, n + length, nil
}

// Task

func sizeTask(t *core.Task) int {
	return ord.String.Size(t.TaskId) +
		ord.String.Size(t.WorkflowId) +
		ord.String.Size(string(t.Status)) +
		ord.String.Size(t.DocumentId) +
		ord.String.Size(t.Error) +
		ord.String.Size(string(t.SourceKind)) +
		sizeStringMap(t.Metadata) +
		sizeTime(t.CreatedAt) +
		sizeTime(t.UpdatedAt)
}

// MarshalTask serializes a Task to bytes.
func MarshalTask(t *core.Task) []byte {
	bs := make([]byte, sizeTask(t))
	n := ord.String.Marshal(t.TaskId, bs)
	n += ord.String.Marshal(t.WorkflowId, bs[n:])
	n += ord.String.Marshal(string(t.Status), bs[n:])
	n += ord.String.Marshal(t.DocumentId, bs[n:])
	n += ord.String.Marshal(t.Error, bs[n:])
	n += ord.String.Marshal(string(t.SourceKind), bs[n:])
	n += marshalStringMap(t.Metadata, bs[n:])
	n += marshalTime(t.CreatedAt, bs[n:])
	marshalTime(t.UpdatedAt, bs[n:])
	return bs
}

// UnmarshalTask deserializes a Task from bytes.
func UnmarshalTask(data []byte) (*core.Task, error) {
	t := &core.Task{}
	var n, n1 int
	var err error
	var s string
	if t.TaskId, n, err = ord.String.Unmarshal(data); err != nil {
		return nil, err
	}
	if t.WorkflowId, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	t.Status = core.TaskStatus(s)
	n += n1
	if t.DocumentId, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if t.Error, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, err
	}
	t.SourceKind = core.SourceKind(s)
	n += n1
	if t.Metadata, n1, err = unmarshalStringMap(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if t.CreatedAt, n1, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	n += n1
	if t.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, err
	}
	return t, nil
}

// Document

func sizeDocument(d *core.Document) int {
	return ord.String.Size(d.DocumentId) +
		ord.String.Size(d.Title) +
		ord.String.Size(d.MimeType) +
		sizeStringSlice(d.Tags) +
		ord.String.Size(string(d.SourceKind)) +
		ord.String.Size(d.SourceRef) +
		varint.Int.Size(d.ChunkCount) +
		ord.String.Size(d.BlobUri) +
		sizeStringMap(d.Metadata) +
		sizeTime(d.CreatedAt) +
		sizeTime(d.UpdatedAt)
}

func marshalDocumentTo(d *core.Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.DocumentId, bs)
	n += ord.String.Marshal(d.Title, bs[n:])
	n += ord.String.Marshal(d.MimeType, bs[n:])
	n += marshalStringSlice(d.Tags, bs[n:])
	n += ord.String.Marshal(string(d.SourceKind), bs[n:])
	n += ord.String.Marshal(d.SourceRef, bs[n:])
	n += varint.Int.Marshal(d.ChunkCount, bs[n:])
	n += ord.String.Marshal(d.BlobUri, bs[n:])
	n += marshalStringMap(d.Metadata, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func unmarshalDocumentFrom(bs []byte) (d core.Document, n int, err error) {
	var n1 int
	var s string
	if d.DocumentId, n, err = ord.String.Unmarshal(bs); err != nil {
		return d, n, err
	}
	if d.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.MimeType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.Tags, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	d.SourceKind = core.SourceKind(s)
	n += n1
	if d.SourceRef, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.BlobUri, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.Metadata, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n, err
	}
	n += n1
	return d, n, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(d *core.Document) []byte {
	bs := make([]byte, sizeDocument(d))
	marshalDocumentTo(d, bs)
	return bs
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d, _, err := unmarshalDocumentFrom(data)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Chunk

func sizeChunk(c *core.Chunk) int {
	return varint.Int.Size(c.Index) + ord.String.Size(c.Text) + sizeVector(c.Vector)
}

func marshalChunkTo(c *core.Chunk, bs []byte) (n int) {
	n = varint.Int.Marshal(c.Index, bs)
	n += ord.String.Marshal(c.Text, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	return n
}

func unmarshalChunkFrom(bs []byte) (c core.Chunk, n int, err error) {
	var n1 int
	if c.Index, n, err = varint.Int.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n, err
	}
	n += n1
	if c.Vector, n1, err = unmarshalVector(bs[n:]); err != nil {
		return c, n, err
	}
	n += n1
	return c, n, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(c *core.Chunk) []byte {
	bs := make([]byte, sizeChunk(c))
	marshalChunkTo(c, bs)
	return bs
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	c, _, err := unmarshalChunkFrom(data)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
