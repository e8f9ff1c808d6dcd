package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent_Deterministic(t *testing.T) {
	id1 := IDFromContent("sha256:abc,v1.0.0")
	id2 := IDFromContent("sha256:abc,v1.0.0")
	id3 := IDFromContent("sha256:abc,v1.0.1")

	assert.Equal(t, id1, id2, "identical content must produce identical IDs")
	assert.NotEqual(t, id1, id3, "different content should produce different IDs")
}

func TestDocumentIDFor_StableAcrossReingestion(t *testing.T) {
	meta := &ContainerMetadata{ImageId: "sha256:aaa", ImageTag: "v1"}
	first := DocumentIDFor(SourceContainer, meta.Tuple())
	second := DocumentIDFor(SourceContainer, meta.Tuple())

	require.Equal(t, first, second)
	assert.NotEqual(t, first, DocumentIDFor(SourceURL, "https://example.com/doc"))
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		ok   bool
	}{
		{"queued to processing", TaskQueued, TaskProcessing, true},
		{"processing to completed", TaskProcessing, TaskCompleted, true},
		{"processing to failed", TaskProcessing, TaskFailed, true},
		{"queued to completed skips processing", TaskQueued, TaskCompleted, false},
		{"completed back to processing", TaskCompleted, TaskProcessing, false},
		{"failed to completed", TaskFailed, TaskCompleted, false},
		{"completed to failed", TaskCompleted, TaskFailed, false},
		{"processing to queued", TaskProcessing, TaskQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, ValidTransition(tt.from, tt.to))
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskQueued.Terminal())
	assert.False(t, TaskProcessing.Terminal())
	assert.True(t, TaskCompleted.Terminal())
	assert.True(t, TaskFailed.Terminal())
}

func TestSubmission_Reference(t *testing.T) {
	url := &Submission{Source: SourceURL, URL: "https://example.com/runbook.md"}
	assert.Equal(t, "https://example.com/runbook.md", url.Reference())

	container := &Submission{
		Source:    SourceContainer,
		Container: &ContainerMetadata{ImageId: "sha256:abc", ImageTag: "latest"},
	}
	assert.Equal(t, "(sha256:abc,latest)", container.Reference())

	upload := &Submission{Source: SourceUpload, DocumentBytes: "aGVsbG8="}
	assert.Equal(t, "inline", upload.Reference())
}
