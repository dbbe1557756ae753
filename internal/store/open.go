package store

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/mindloop/config"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Open builds the StateStore selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (*BlobStore, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case BackendFile, "":
		b, err = NewFile(cfg.File.DataDir)
	case BackendMemory:
		b = NewMemory()
	case BackendRedis:
		c, cerr := Conn(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
		if cerr != nil {
			return nil, cerr
		}
		b = NewRedis(c, cfg.Namespace)
	case BackendPostgres:
		b, err = NewPostgres(ctx, cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("invalid storage backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewBlobStore(b), nil
}
