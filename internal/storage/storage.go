// Package storage keeps original uploaded files. Document metadata and text
// live in the database; blobs live here under an opaque key.
package storage

import (
	"context"
	"fmt"
	"io"

	"writingstuff/config"
)

// BlobStore is implemented by the local filesystem and S3 backends.
// Get and Delete on a missing key return apperror.ErrNotFound.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
