package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/helpdesk/pkg/config"
	"github.com/platinummonkey/helpdesk/pkg/storage"
)

// NewBlobStore builds the configured attachment store.
func NewBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Type {
	case "", "filesystem":
		return storage.NewFileSystemStorage(cfg.Root)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
