package mock

import (
	"context"
	"strings"

	"github.com/poiesic/shipdex/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, uses default simple word extraction.
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]ai.ExtractedEntity, error)

	callCount int
}

// NewMockEntityExtractor creates a mock extractor with default behavior.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities extracts simple mock entities from text.
// Default behavior: the first few distinct long words become entities of
// type "technology" with descending importance.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	m.callCount++

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	words := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool)
	entities := make([]ai.ExtractedEntity, 0, 5)
	importance := 10
	for _, word := range words {
		if len(entities) >= 5 {
			break
		}
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 5 || seen[word] {
			continue
		}
		seen[word] = true
		entities = append(entities, ai.ExtractedEntity{
			Name:       word,
			Type:       "technology",
			Importance: importance,
		})
		if importance > 1 {
			importance--
		}
	}
	return entities, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
}
