package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// KV is a string-keyed, string-valued store shared by the whole process.
type KV interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Redis       RedisConfig
	DatabaseURL string
	OpTimeout   time.Duration
}

// Open returns the configured backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendRedis:
		cfg := opts.Redis
		if cfg.OpTimeout <= 0 {
			cfg.OpTimeout = opts.OpTimeout
		}
		return NewRedisStore(ctx, cfg)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL, opts.OpTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
