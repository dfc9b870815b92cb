package store

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/order"
)

// Backend is a snapshot store.
type Backend interface {
	Load(ctx context.Context) (order.State, bool, error)
	Save(ctx context.Context, st order.State) error
	Clear(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Redis)(nil)
	_ Backend = (*Memory)(nil)
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// BackendConfig selects and configures a snapshot backend.
type BackendConfig struct {
	Backend string
	Path    string
	Redis   RedisConfig
}

// OpenBackend opens the configured backend. "none" yields a Memory store
// that lives as long as the process.
func OpenBackend(ctx context.Context, cfg BackendConfig, log *zap.Logger) (Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendSQLite, "":
		return Open(cfg.Path, WithLogger(log))
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis, log)
	case BackendNone:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}
