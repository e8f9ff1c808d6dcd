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


package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/storage"
)

// BlobStore is the MinIO-backed implementation of storage.BlobStore.
// Objects are written with full-overwrite semantics, so a retried Put
// of the same key converges instead of duplicating.
type BlobStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a blob store for the configured bucket.
func NewBlobStore(cfg Config) (*BlobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, err
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		logger: slog.Default().With("component", "blob_store"),
	}, nil
}

// NewBlobStoreWithClient wraps an existing MinIO client.
func NewBlobStoreWithClient(client *minio.Client, bucket string) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &BlobStore{
		client: client,
		bucket: bucket,
		logger: slog.Default().With("component", "blob_store"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (b *BlobStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket check: %v", core.ErrTransientFetch, err)
	}
	if exists {
		return nil
	}
	return b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region})
}

func (b *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", core.NewStoreWriteError("blob", key, err)
	}
	return "s3://" + b.bucket + "/" + key, nil
}

func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyGetError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyGetError(key, err)
	}
	return data, nil
}

// classifyGetError maps object store failures onto the error taxonomy:
// a missing object is permanent, everything else is transient.
func classifyGetError(key string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: blob %s", storage.ErrNotFound, key)
	}
	return fmt.Errorf("%w: blob %s: %v", core.ErrTransientFetch, key, err)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
