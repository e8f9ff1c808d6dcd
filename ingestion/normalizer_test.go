package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/ai/mock"
	"github.com/poiesic/shipdex/core"
)

const testImageDigest = "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func testContainerMeta() *core.ContainerMetadata {
	return &core.ContainerMetadata{
		ImageId:    testImageDigest,
		ImageTag:   "2.1",
		Registry:   "ghcr.io",
		Repository: "acme/payments",
		SBOMUri:    "s3://sboms/payments.json",
		SBOMFormat: "spdx",
		Vulnerabilities: map[string]core.Vulnerability{
			"CVE-2024-0001": {Severity: "HIGH", Package: "openssl", Version: "3.0.1"},
		},
	}
}

func TestNormalize_PlainText(t *testing.T) {
	n := NewNormalizer(mock.NewMockEntityExtractor())

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:   core.SourceUpload,
		MimeType: "text/plain",
		Title:    "notes",
	}, []byte("  postgres failover procedure\nstep one  "))
	require.NoError(t, err)
	assert.Equal(t, "notes", norm.Document.Title)
	assert.Equal(t, "postgres failover procedure\nstep one", norm.Text)
	assert.NotEmpty(t, norm.Entities)
	assert.Nil(t, norm.Container)
}

func TestNormalize_TitleDefaultsToFirstLine(t *testing.T) {
	n := NewNormalizer(nil)

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source: core.SourceUpload,
	}, []byte("Incident report 42\nfull details follow"))
	require.NoError(t, err)
	assert.Equal(t, "Incident report 42", norm.Document.Title)
}

func TestNormalize_SameUploadContentSameDocumentId(t *testing.T) {
	n := NewNormalizer(nil)
	sub := &core.Submission{Source: core.SourceUpload}

	a, err := n.Normalize(context.Background(), sub, []byte("identical body"))
	require.NoError(t, err)
	b, err := n.Normalize(context.Background(), sub, []byte("identical body"))
	require.NoError(t, err)
	c, err := n.Normalize(context.Background(), sub, []byte("different body"))
	require.NoError(t, err)

	assert.Equal(t, a.Document.DocumentId, b.Document.DocumentId)
	assert.NotEqual(t, a.Document.DocumentId, c.Document.DocumentId)
}

func TestNormalize_JSONFlattened(t *testing.T) {
	n := NewNormalizer(nil)

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:   core.SourceUpload,
		MimeType: "application/json",
	}, []byte(`{"service":{"name":"payments","replicas":3}}`))
	require.NoError(t, err)
	assert.Contains(t, norm.Text, "service.name: payments")
	assert.Contains(t, norm.Text, "service.replicas: 3")
}

func TestNormalize_BadJSONIsPermanent(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize(context.Background(), &core.Submission{
		Source:   core.SourceUpload,
		MimeType: "application/json",
	}, []byte(`{"unterminated`))
	assert.ErrorIs(t, err, core.ErrInvalidPayload)
}

func TestNormalize_HTMLStripped(t *testing.T) {
	n := NewNormalizer(nil)

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:   core.SourceURL,
		URL:      "https://wiki.internal/page",
		MimeType: "text/html",
	}, []byte(`<html><head><style>p{color:red}</style></head><body><p>visible text</p><script>alert(1)</script></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "visible text", norm.Text)
}

func TestNormalize_UnknownMimeFiltered(t *testing.T) {
	n := NewNormalizer(nil)

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:   core.SourceUpload,
		MimeType: "application/octet-stream",
	}, []byte("readable\x00\x01\x02 text"))
	require.NoError(t, err)
	assert.Equal(t, "readable text", norm.Text)
}

func TestNormalize_ExtractionFailureIsNonFatal(t *testing.T) {
	extractor := mock.NewMockEntityExtractor()
	extractor.ExtractEntitiesFunc = func(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
		return nil, errors.New("model unavailable")
	}
	n := NewNormalizer(extractor)

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source: core.SourceUpload,
	}, []byte("text that mentions kubernetes"))
	require.NoError(t, err)
	assert.Empty(t, norm.Entities)
}

func TestNormalize_ContainerEnrichment(t *testing.T) {
	n := NewNormalizer(nil)
	meta := testContainerMeta()

	norm, err := n.Normalize(context.Background(), &core.Submission{
		Source:    core.SourceContainer,
		Container: meta,
		Tags:      []string{"payments"},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "acme/payments:2.1", norm.Document.Title)
	assert.Equal(t, []string{"payments", "container", "artifact", "ghcr.io"}, norm.Document.Tags)
	assert.Equal(t, meta.Tuple(), norm.Document.SourceRef)
	assert.Contains(t, norm.Text, "CVE-2024-0001")
	assert.NotNil(t, norm.Container)
}

func TestNormalize_ContainerIdempotentDocumentId(t *testing.T) {
	n := NewNormalizer(nil)

	a, err := n.Normalize(context.Background(), &core.Submission{
		Source:    core.SourceContainer,
		Container: testContainerMeta(),
	}, []byte(`{}`))
	require.NoError(t, err)
	b, err := n.Normalize(context.Background(), &core.Submission{
		Source:    core.SourceContainer,
		Container: testContainerMeta(),
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, a.Document.DocumentId, b.Document.DocumentId)
}

func TestNormalize_ContainerValidation(t *testing.T) {
	n := NewNormalizer(nil)
	meta := testContainerMeta()
	meta.ImageId = "sha256:short"

	_, err := n.Normalize(context.Background(), &core.Submission{
		Source:    core.SourceContainer,
		Container: meta,
	}, []byte(`{}`))
	assert.ErrorIs(t, err, core.ErrValidation)
}
