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

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical natural
// keys always map to the same identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// TaskStatus is the lifecycle status of an ingestion task.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskQueued, TaskProcessing, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is an end state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ValidTransition reports whether a task may move from one status to another.
// Transitions are monotone: queued -> processing -> {completed, failed}.
// A task never re-enters queued or processing after reaching a terminal state.
func ValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskQueued:
		return to == TaskProcessing
	case TaskProcessing:
		return to == TaskCompleted || to == TaskFailed
	}
	return false
}

// SourceKind identifies where submission content comes from.
type SourceKind string

const (
	SourceUpload    SourceKind = "upload"
	SourceBlobRef   SourceKind = "blob-ref"
	SourceURL       SourceKind = "url"
	SourceContainer SourceKind = "container"
)

// Valid reports whether the source kind is one of the known variants.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceUpload, SourceBlobRef, SourceURL, SourceContainer:
		return true
	}
	return false
}

// Task represents one ingestion submission and its lifecycle status.
// The ledger record is the single source of truth for what happened to
// a submission.
type Task struct {
	TaskId     string
	WorkflowId string
	Status     TaskStatus
	DocumentId string // set only once completed
	Error      string // set only once failed
	SourceKind SourceKind
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskAccepted is returned to the caller when a submission is accepted.
type TaskAccepted struct {
	TaskId      string
	WorkflowId  string
	Status      TaskStatus
	SubmittedAt time.Time
}

// Vulnerability describes one CVE reported against a container image.
type Vulnerability struct {
	Severity     string
	Package      string
	Version      string
	FixedVersion string
	Description  string
}

// ContainerMetadata is the structured payload of a container submission.
// ImageId must match sha256:<64 hex chars>; ImageTag, Registry and
// Repository are required.
type ContainerMetadata struct {
	ImageId      string
	ImageTag     string
	Registry     string
	Repository   string
	SBOMUri      string
	SBOMFormat   string
	CreatedAt    string // ISO 8601, as reported by the registry
	SizeBytes    int64
	Architecture string
	OS           string
	Layers       []string
	Labels       map[string]string
	EnvVars      map[string]string
	// Vulnerabilities maps CVE id to scan detail.
	Vulnerabilities map[string]Vulnerability
}

// Tuple returns the natural key of the image as "(image_id,image_tag)".
// This is used for generating deterministic IDs.
func (c *ContainerMetadata) Tuple() string {
	return "(" + c.ImageId + "," + c.ImageTag + ")"
}

// Submission is the tagged union consumed from the command surface.
// Source selects which payload field carries the content.
type Submission struct {
	Source   SourceKind
	Title    string
	MimeType string
	Tags     []string
	Metadata map[string]string

	// Payload by source kind.
	DocumentBytes string // base64-encoded inline content (upload)
	BlobRef       string // blob store locator (blob-ref)
	URL           string // remote URL (url)
	Container     *ContainerMetadata
}

// Reference returns the source-specific reference used for provenance
// and document id derivation.
func (s *Submission) Reference() string {
	switch s.Source {
	case SourceUpload:
		return "inline"
	case SourceBlobRef:
		return s.BlobRef
	case SourceURL:
		return s.URL
	case SourceContainer:
		if s.Container != nil {
			return s.Container.Tuple()
		}
	}
	return ""
}

// Entity is a coarse entity extracted from document text.
type Entity struct {
	Name string
	Type string
}

// Chunk is one passage of a document with its embedding vector.
type Chunk struct {
	Index  int
	Text   string
	Vector []float32
}

// Document is a normalized content unit as recorded in the metadata store.
// It is immutable after write except for re-ingestion under the same
// natural key, which upserts in place.
type Document struct {
	DocumentId string
	Title      string
	MimeType   string
	Tags       []string
	SourceKind SourceKind
	SourceRef  string
	ChunkCount int
	BlobUri    string
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizedDocument is the canonical intermediate form produced by the
// normalizer: plain text plus extracted entities, or a container artifact.
type NormalizedDocument struct {
	Document  Document
	Text      string
	Entities  []Entity
	Container *ContainerMetadata // nil for plain documents
	Raw       []byte             // original payload, archived to blob storage
}

// DocumentIDFor derives the stable document id for a natural key.
// Re-ingesting the same natural key yields the same document id, which
// is what makes every downstream write an upsert.
func DocumentIDFor(kind SourceKind, naturalKey string) string {
	return fmt.Sprintf("doc-%016x", uint64(IDFromContent(string(kind)+":"+naturalKey)))
}

// Stage identifies a step of the ingestion workflow. Stages are ordered;
// the orchestrator persists the current stage before every suspension
// point so a restart resumes from the last completed stage.
type Stage uint8

const (
	StageFetch Stage = iota + 1
	StageNormalize
	StageEmbed
	StageWrite
)

// String returns the stage name used in logs and checkpoint records.
func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageNormalize:
		return "normalize"
	case StageEmbed:
		return "embed"
	case StageWrite:
		return "write"
	}
	return "unknown"
}

// WorkflowCheckpoint is the durable record of where a task is in the
// workflow. Intermediate stage outputs are carried along so a resumed
// task does not redo completed stages.
type WorkflowCheckpoint struct {
	TaskId     string
	Stage      Stage
	Attempt    int
	Submission Submission
	Content    []byte              // output of the fetch stage
	Normalized *NormalizedDocument // output of the normalize stage
	Chunks     []Chunk             // output of the chunk/embed stage
	UpdatedAt  time.Time
}
