// d8cart/cartstore/open.go

package cartstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	SQLitePath string
	RedisAddr  string
}

// Open builds the configured backend and initializes it.
func Open(ctx context.Context, opts Options, log logrus.FieldLogger) (ICartStore, error) {
	var store ICartStore
	switch opts.Backend {
	case BackendMemory:
		store = NewLocalCartStore(log)
	case BackendSQLite, "":
		s, err := NewSQLiteCartStore(opts.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		store = s
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, errors.New("redis backend requires an address")
		}
		store = NewRedisCartStore(opts.RedisAddr, log)
	default:
		return nil, errors.Errorf("unknown storage backend %q", opts.Backend)
	}

	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, errors.Wrapf(err, "initialize %s store", opts.Backend)
	}
	return store, nil
}
