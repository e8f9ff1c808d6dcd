package storage

import (
	"testing"
	"time"

	"github.com/poiesic/shipdex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	task := &core.Task{
		TaskId:     "f1f9c9d2-4c39-4a5e-9a4d-2f0a1c7be111",
		WorkflowId: "ingestion-f1f9c9d2-4c39-4a5e-9a4d-2f0a1c7be111",
		Status:     core.TaskCompleted,
		DocumentId: "doc-00000000deadbeef",
		SourceKind: core.SourceContainer,
		Metadata:   map[string]string{"team": "platform", "env": "prod"},
		CreatedAt:  now.Add(-time.Minute),
		UpdatedAt:  now,
	}

	got, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)
	assert.Equal(t, task.TaskId, got.TaskId)
	assert.Equal(t, task.Status, got.Status)
	assert.Equal(t, task.DocumentId, got.DocumentId)
	assert.Equal(t, task.Metadata, got.Metadata)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, task.UpdatedAt.Equal(got.UpdatedAt))
}

func TestCheckpointRoundTrip_CarriesStageOutputs(t *testing.T) {
	cp := &core.WorkflowCheckpoint{
		TaskId:  "task-1",
		Stage:   core.StageWrite,
		Attempt: 2,
		Submission: core.Submission{
			Source: core.SourceContainer,
			Title:  "platform/api:v1.2.3",
			Tags:   []string{"container", "artifact"},
			Container: &core.ContainerMetadata{
				ImageId:    "sha256:0123456789012345678901234567890101234567890123456789012345678901",
				ImageTag:   "v1.2.3",
				Registry:   "registry.example.com",
				Repository: "platform/api",
				SBOMUri:    "s3://sboms/platform-api.spdx.json",
				SBOMFormat: "spdx",
				Labels:     map[string]string{"maintainer": "platform"},
				Layers:     []string{"sha256:aaa", "sha256:bbb"},
				Vulnerabilities: map[string]core.Vulnerability{
					"CVE-2024-1234": {Severity: "high", Package: "openssl", Version: "3.0.1", FixedVersion: "3.0.7"},
				},
			},
		},
		Content: []byte("raw payload"),
		Normalized: &core.NormalizedDocument{
			Document: core.Document{
				DocumentId: "doc-0011223344556677",
				Title:      "platform/api:v1.2.3",
				SourceKind: core.SourceContainer,
			},
			Text:     "",
			Entities: []core.Entity{{Name: "openssl", Type: "package"}},
		},
		Chunks: []core.Chunk{
			{Index: 0, Text: "first passage", Vector: []float32{0.1, 0.2, 0.3}},
			{Index: 1, Text: "second passage", Vector: []float32{0.4, 0.5, 0.6}},
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)
	assert.Equal(t, cp.TaskId, got.TaskId)
	assert.Equal(t, cp.Stage, got.Stage)
	assert.Equal(t, cp.Attempt, got.Attempt)
	require.NotNil(t, got.Submission.Container)
	assert.Equal(t, cp.Submission.Container.Vulnerabilities, got.Submission.Container.Vulnerabilities)
	assert.Equal(t, cp.Content, got.Content)
	require.NotNil(t, got.Normalized)
	assert.Equal(t, cp.Normalized.Entities, got.Normalized.Entities)
	assert.Equal(t, cp.Chunks, got.Chunks)
}

func TestContainerImageNodeRoundTrip(t *testing.T) {
	node := &core.ContainerImageNode{
		Key:          core.ContainerImageKey("sha256:abc", "v1"),
		ImageId:      "sha256:abc",
		ImageTag:     "v1",
		Registry:     "registry.example.com",
		Repository:   "platform/api",
		Architecture: "amd64",
		OS:           "linux",
		SizeBytes:    123456789,
		Labels:       map[string]string{"tier": "backend"},
		Layers:       []string{"sha256:l1", "sha256:l2"},
		InsertedAt:   time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalContainerImageNode(MarshalContainerImageNode(node))
	require.NoError(t, err)
	assert.Equal(t, node.Key, got.Key)
	assert.Equal(t, node.Labels, got.Labels)
	assert.Equal(t, node.Layers, got.Layers)
	assert.Equal(t, node.SizeBytes, got.SizeBytes)
}

func TestMarshalID_RoundTrip(t *testing.T) {
	id := core.IDFromContent("CVE-2024-1234")
	got, err := UnmarshalID(MarshalID(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
