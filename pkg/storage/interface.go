package storage

import (
	"context"
	"errors"
	"time"
)

var ErrPresignUnsupported = errors.New("presigned upload not supported by this storage")

// Config selects and configures the object storage backend.
type Config struct {
	Driver string      `mapstructure:"driver"` // "s3", "local"
	S3     S3Config    `mapstructure:"s3"`
	Local  LocalConfig `mapstructure:"local"`
}

// Storage is the object store behind avatar uploads. Clients upload
// directly to a presigned URL; the service only resolves and removes keys.
type Storage interface {
	// PresignUpload returns a URL the client can PUT the object to.
	PresignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error)

	// ObjectURL returns a URL that serves key for at least expires.
	ObjectURL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// New creates the configured storage backend.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return NewLocalStorage(cfg.Local)
	}
}
