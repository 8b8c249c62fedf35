package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/samber/oops"

	"github.com/projecthub/apiserver/config"
)

// ErrDisabled is returned by Open when no storage backend is configured.
var ErrDisabled = errors.New("object storage disabled")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
	Close() error
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, ErrDisabled
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, oops.In("storage").Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, oops.In("storage").With("backend", cfg.Backend).Wrapf(err, "connect")
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, oops.In("storage").With("bucket", backend.Bucket()).Wrapf(err, "ensure bucket")
	}
	return backend, nil
}
