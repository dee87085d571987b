// Package blob stores uploaded sequence files by key. Several backends are
// available; the process picks one from configuration.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/ednaflow/internal/config"
)

// ErrNotFound is returned by Delete implementations that can tell a missing
// object apart from other failures.
var ErrNotFound = errors.New("blob not found")

// Store is key-addressed storage for upload bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// New builds the Store selected by cfg.Blob.Backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Blob.Backend {
	case "supabase":
		return NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey, cfg.Blob.Bucket), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.Blob.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			AccessKey: cfg.Blob.S3.AccessKey,
			SecretKey: cfg.Blob.S3.SecretKey,
		})
	case "minio":
		return NewMinioStore(ctx, cfg.Blob.Minio.Endpoint, cfg.Blob.Minio.AccessKey,
			cfg.Blob.Minio.SecretKey, cfg.Blob.Bucket, cfg.Blob.Minio.UseSSL)
	case "gcs":
		return NewGCSStore(ctx, cfg.Blob.Bucket)
	case "local":
		return NewLocalStore(cfg.Blob.LocalDir), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
