package storage

import (
	"context"
	"fmt"

	"etcd-backup-agent/internal/config"
	"etcd-backup-agent/internal/errors"
)

// NewObjectStore builds the configured provider. The provider enum is
// validated by config, an unknown value here is still rejected.
func NewObjectStore(ctx context.Context, cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Store(cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg)
	case "azure":
		return NewAzureStore(cfg)
	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unknown storage provider %q", cfg.Provider), nil)
	}
}
