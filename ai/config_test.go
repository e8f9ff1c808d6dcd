package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestNewConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://ai.internal:9100"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithExtractorModel("gpt-4o-mini"),
		WithMinImportance(4),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://ai.internal:9100/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://ai.internal:9100/v1", cfg.ExtractorHost)
	assert.Equal(t, 4, cfg.MinImportance)
}

func TestNormalizeAddsV1Suffix(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"bare host", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"already suffixed", "http://localhost:11434/v1", "http://localhost:11434/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, tt.want, cfg.ExtractorHost)
		})
	}
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no embedding host", func(c *Config) { c.EmbeddingHost = "" }},
		{"no extractor host", func(c *Config) { c.ExtractorHost = "" }},
		{"no embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"no extractor model", func(c *Config) { c.ExtractorModel = "" }},
		{"importance too low", func(c *Config) { c.MinImportance = 0 }},
		{"importance too high", func(c *Config) { c.MinImportance = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
