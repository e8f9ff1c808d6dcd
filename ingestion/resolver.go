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


package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

const defaultMaxFetchBytes = 32 << 20 // 32 MiB

// ContentResolver turns a submission into raw content bytes. Failures
// are classified for the retry policy: malformed input is permanent,
// unreachable remotes are transient.
type ContentResolver struct {
	blobStore     storage.BlobStore
	httpClient    *http.Client
	maxFetchBytes int64
	logger        *slog.Logger
}

// ResolverOption configures a ContentResolver.
type ResolverOption func(*ContentResolver) error

// WithHTTPClient sets a custom HTTP client for URL fetches.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *ContentResolver) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		r.httpClient = client
		return nil
	}
}

// WithMaxFetchBytes caps the size of fetched remote content.
func WithMaxFetchBytes(limit int64) ResolverOption {
	return func(r *ContentResolver) error {
		if limit < 1 {
			return fmt.Errorf("fetch limit must be positive")
		}
		r.maxFetchBytes = limit
		return nil
	}
}

// NewContentResolver creates a resolver over the given blob store.
func NewContentResolver(blobStore storage.BlobStore, opts ...ResolverOption) (*ContentResolver, error) {
	if blobStore == nil {
		return nil, ErrBlobStoreRequired
	}
	r := &ContentResolver{
		blobStore: blobStore,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxFetchBytes: defaultMaxFetchBytes,
		logger:        slog.Default().With("component", "content_resolver"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve fetches the raw content for a submission.
func (r *ContentResolver) Resolve(ctx context.Context, sub *core.Submission) ([]byte, error) {
	switch sub.Source {
	case core.SourceUpload:
		return r.resolveUpload(sub)
	case core.SourceBlobRef:
		return r.resolveBlobRef(ctx, sub)
	case core.SourceURL:
		return r.resolveURL(ctx, sub)
	case core.SourceContainer:
		// Container submissions carry their payload inline; the raw
		// bytes archived are the metadata record itself.
		data, err := json.Marshal(sub.Container)
		if err != nil {
			return nil, fmt.Errorf("%w: container metadata: %v", core.ErrInvalidPayload, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: unknown source %q", core.ErrValidation, sub.Source)
}

func (r *ContentResolver) resolveUpload(sub *core.Submission) ([]byte, error) {
	if sub.DocumentBytes == "" {
		return nil, fmt.Errorf("%w: empty upload", core.ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(sub.DocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", core.ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: upload decoded to zero bytes", core.ErrInvalidPayload)
	}
	return data, nil
}

func (r *ContentResolver) resolveBlobRef(ctx context.Context, sub *core.Submission) ([]byte, error) {
	key := blobKeyFromRef(sub.BlobRef)
	if key == "" {
		return nil, fmt.Errorf("%w: empty blob reference", core.ErrInvalidPayload)
	}
	data, err := r.blobStore.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *ContentResolver) resolveURL(ctx context.Context, sub *core.Submission) ([]byte, error) {
	parsed, err := url.Parse(sub.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: malformed url %q", core.ErrInvalidPayload, sub.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", core.ErrInvalidPayload, parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sub.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Network failures, DNS errors and timeouts may heal.
		return nil, fmt.Errorf("%w: fetch %s: %v", core.ErrTransientFetch, sub.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", core.ErrTransientFetch, sub.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrTransientFetch, sub.URL, err)
	}
	if int64(len(data)) > r.maxFetchBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", core.ErrInvalidPayload, sub.URL, r.maxFetchBytes)
	}
	return data, nil
}

// blobKeyFromRef extracts the object key from a blob reference, which
// may be a bare key or an s3://bucket/key URI.
func blobKeyFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, scheme := range []string{"s3://", "mem://"} {
		if rest, ok := strings.CutPrefix(ref, scheme); ok {
			if scheme == "s3://" {
				// Drop the bucket segment.
				if _, key, found := strings.Cut(rest, "/"); found {
					return key
				}
				return ""
			}
			return rest
		}
	}
	return ref
}
