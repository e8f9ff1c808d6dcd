package storage

import (
	"context"
	"time"

	"github.com/poiesic/shipdex/core"
)

// TaskLedger is the durable record of ingestion tasks. It is the single
// source of truth for what happened to a submission.
//
// All writes must be safe under retry: repeating a terminal UpdateStatus
// with the same status and payload is a no-op. Implementations must
// serialize concurrent status updates for the same task id.
type TaskLedger interface {
	// Create persists a new task and returns its id. Status defaults to
	// queued; CreatedAt/UpdatedAt are populated if unset.
	Create(ctx context.Context, task *core.Task) (string, error)

	// UpdateStatus moves a task along its lifecycle. documentId is
	// recorded on completed, errMsg on failed. Returns ErrNotFound for
	// an unknown id and ErrInvalidTransition for a non-monotone move.
	UpdateStatus(ctx context.Context, taskId string, status core.TaskStatus, documentId, errMsg string) error

	// Get retrieves a task by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, taskId string) (*core.Task, error)

	// List returns tasks most-recent-first, optionally filtered by
	// status. limit <= 0 means no limit.
	List(ctx context.Context, filter TaskFilter) ([]*core.Task, error)

	// Delete removes a task record. This is an administrative operation
	// on the ledger; the pipeline itself never deletes tasks.
	Delete(ctx context.Context, taskId string) error
}

// TaskFilter narrows a ledger listing.
type TaskFilter struct {
	Status core.TaskStatus // empty matches all
	Limit  int
	Offset int
}

// GraphStore holds entities and relationships. Every upsert is keyed by
// the node's natural key, so repeated application converges to the same
// state: properties are overwritten, relationships are upserted.
type GraphStore interface {
	UpsertContainerImage(ctx context.Context, node *core.ContainerImageNode) error
	UpsertSBOM(ctx context.Context, node *core.SBOMNode) error
	UpsertVulnerability(ctx context.Context, node *core.VulnerabilityNode) error
	UpsertDocumentNode(ctx context.Context, node *core.DocumentNode) error
	UpsertEntity(ctx context.Context, node *core.EntityNode) error

	// Link upserts a directed edge keyed by (from, rel, to).
	Link(ctx context.Context, from core.ID, rel string, to core.ID, props map[string]string) error

	GetContainerImage(ctx context.Context, key core.ID) (*core.ContainerImageNode, error)
	GetSBOM(ctx context.Context, key core.ID) (*core.SBOMNode, error)
	GetVulnerability(ctx context.Context, key core.ID) (*core.VulnerabilityNode, error)
	GetDocumentNode(ctx context.Context, key core.ID) (*core.DocumentNode, error)

	// Edges returns outbound edges from a node, optionally filtered by
	// relationship name (empty rel matches all).
	Edges(ctx context.Context, from core.ID, rel string) ([]*core.GraphEdge, error)

	// InEdges returns inbound edges to a node, optionally filtered by
	// relationship name.
	InEdges(ctx context.Context, to core.ID, rel string) ([]*core.GraphEdge, error)

	// ImagesByRegistry returns container images for a registry.
	ImagesByRegistry(ctx context.Context, registry string, limit int) ([]*core.ContainerImageNode, error)

	// ImagesByRepository returns container images for a repository,
	// optionally filtered by tag (empty tag matches all).
	ImagesByRepository(ctx context.Context, repository, tag string, limit int) ([]*core.ContainerImageNode, error)
}

// VectorIndex stores chunk embeddings keyed by (document_id, chunk_index).
type VectorIndex interface {
	// UpsertChunks overwrites same-index vectors for the document and
	// removes any stale chunks beyond the new count, so re-ingestion
	// never duplicates passages.
	UpsertChunks(ctx context.Context, documentId string, chunks []core.Chunk) error

	// Chunks returns the stored chunks for a document in index order.
	Chunks(ctx context.Context, documentId string) ([]core.Chunk, error)

	// Search returns the closest chunks by cosine similarity.
	Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*ChunkMatch, error)

	// DeleteDocument removes all chunks for a document.
	DeleteDocument(ctx context.Context, documentId string) error
}

// ChunkMatch is a vector search hit.
type ChunkMatch struct {
	DocumentId string
	Chunk      core.Chunk
	Score      float32
}

// TextIndex is the full-text index, keyed by document id with
// replace-on-reingest semantics.
type TextIndex interface {
	// IndexDocument replaces the postings for a document.
	IndexDocument(ctx context.Context, documentId, title, text string, tags []string) error

	// Search returns document ids ranked by matched term count.
	Search(ctx context.Context, query string, limit int) ([]string, error)

	// DeleteDocument removes a document from the index.
	DeleteDocument(ctx context.Context, documentId string) error
}

// MetadataStore holds document metadata keyed by document id.
type MetadataStore interface {
	PutDocument(ctx context.Context, doc *core.Document) error
	GetDocument(ctx context.Context, documentId string) (*core.Document, error)
	DeleteDocument(ctx context.Context, documentId string) error

	// ListDocuments returns documents in document id order. limit <= 0
	// means no limit.
	ListDocuments(ctx context.Context, limit, offset int) ([]*core.Document, error)
}

// BlobStore holds raw payloads. Put is an idempotent overwrite of the key.
type BlobStore interface {
	// Put stores data under key and returns the object URI.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get retrieves an object. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
}

// CheckpointStore persists workflow checkpoints so a restart resumes a
// task from its last completed stage.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, checkpoint *core.WorkflowCheckpoint) error

	// LoadCheckpoint returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, taskId string) (*core.WorkflowCheckpoint, error)

	DeleteCheckpoint(ctx context.Context, taskId string) error
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
