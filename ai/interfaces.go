package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in
	// a batch. The returned slice preserves input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor extracts coarse named entities from document text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes text and returns the entities it mentions,
	// most important first. Returns an empty slice if none are found.
	ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error)
}

// ExtractedEntity is one entity identified in text.
type ExtractedEntity struct {
	// Name is the entity identifier in lowercase, 1-3 words.
	// Example: "postgres", "payment service", "log4j"
	Name string

	// Type categorizes the entity. Must match one of EntityTypes.
	Type string

	// Importance is a score from 1-10 indicating how central this entity
	// is to the text.
	Importance int
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	Close() error
}
