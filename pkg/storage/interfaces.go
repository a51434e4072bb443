package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a blob key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModifiedAt  time.Time
}

// BlobStore keeps attachment and PO file contents. Metadata lives in
// Postgres; only the bytes go here.
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	// Get returns ErrObjectNotFound for unknown keys.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// ValidateKey rejects keys that could escape a store's root.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("object key is required")
	}
	if key[0] == '/' {
		return errors.New("object key must be relative")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return errors.New("object key contains an invalid path segment")
		}
	}
	return nil
}
