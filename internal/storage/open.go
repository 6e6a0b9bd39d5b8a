package storage

import (
	"context"
	"fmt"

	"mediashare/internal/config"
)

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "minio":
		store, err := NewObjectStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
