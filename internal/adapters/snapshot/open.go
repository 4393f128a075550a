package snapshot

import (
	"context"
	"fmt"
	"io"

	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store selected by cfg.Backend. The returned closer
// releases its connections.
func Open(ctx context.Context, cfg config.SnapshotConfig) (domain.SnapshotStore, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file":
		return NewFileStore(cfg.Dir), nopCloser{}, nil
	case "redis":
		s := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
}
