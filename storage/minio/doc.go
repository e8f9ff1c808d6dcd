// Package minio provides the MinIO-backed blob store used to archive
// raw submission payloads and serve blob-ref resolution.
package minio
