package ingestion

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

func TestResolve_Upload(t *testing.T) {
	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	content, err := resolver.Resolve(context.Background(), &core.Submission{
		Source:        core.SourceUpload,
		DocumentBytes: base64.StdEncoding.EncodeToString([]byte("hello world")),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)
}

func TestResolve_UploadBadBase64IsPermanent(t *testing.T) {
	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), &core.Submission{
		Source:        core.SourceUpload,
		DocumentBytes: "not-valid-base64!!!",
	})
	assert.ErrorIs(t, err, core.ErrInvalidPayload)
	assert.False(t, core.IsRetryable(err))
}

func TestResolve_BlobRef(t *testing.T) {
	blobs := storage.NewMemoryBlobStore()
	uri, err := blobs.Put(context.Background(), "docs/readme.md", []byte("# readme"), "text/markdown")
	require.NoError(t, err)

	resolver, err := NewContentResolver(blobs)
	require.NoError(t, err)

	content, err := resolver.Resolve(context.Background(), &core.Submission{
		Source:  core.SourceBlobRef,
		BlobRef: uri,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("# readme"), content)
}

func TestResolve_BlobRefMissingIsPermanent(t *testing.T) {
	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), &core.Submission{
		Source:  core.SourceBlobRef,
		BlobRef: "docs/absent.md",
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, core.IsRetryable(err))
}

func TestResolve_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote content"))
	}))
	defer server.Close()

	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	content, err := resolver.Resolve(context.Background(), &core.Submission{
		Source: core.SourceURL,
		URL:    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("remote content"), content)
}

func TestResolve_URLServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), &core.Submission{
		Source: core.SourceURL,
		URL:    server.URL,
	})
	assert.ErrorIs(t, err, core.ErrTransientFetch)
	assert.True(t, core.IsRetryable(err))
}

func TestResolve_MalformedURLIsPermanent(t *testing.T) {
	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	for _, bad := range []string{"not a url", "ftp://example.com/file", "://missing"} {
		_, err = resolver.Resolve(context.Background(), &core.Submission{
			Source: core.SourceURL,
			URL:    bad,
		})
		assert.ErrorIs(t, err, core.ErrInvalidPayload, "url %q", bad)
	}
}

func TestResolve_URLOversizeIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	resolver, err := NewContentResolver(storage.NewMemoryBlobStore(), WithMaxFetchBytes(1024))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), &core.Submission{
		Source: core.SourceURL,
		URL:    server.URL,
	})
	assert.ErrorIs(t, err, core.ErrInvalidPayload)
}

func TestResolve_ContainerMarshalsMetadata(t *testing.T) {
	resolver, err := NewContentResolver(storage.NewMemoryBlobStore())
	require.NoError(t, err)

	content, err := resolver.Resolve(context.Background(), &core.Submission{
		Source: core.SourceContainer,
		Container: &core.ContainerMetadata{
			ImageId:    testImageDigest,
			ImageTag:   "1.0",
			Registry:   "docker.io",
			Repository: "acme/api",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(content), "acme/api")
}

func TestBlobKeyFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"docs/readme.md", "docs/readme.md"},
		{"s3://bucket/docs/readme.md", "docs/readme.md"},
		{"mem://docs/readme.md", "docs/readme.md"},
		{"s3://bucket-only", ""},
		{"  s3://bucket/key  ", "key"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, blobKeyFromRef(tt.ref), "ref %q", tt.ref)
	}
}
