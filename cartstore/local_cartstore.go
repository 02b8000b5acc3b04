// d8cart/cartstore/local_cartstore.go

package cartstore

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LocalCartStore keeps values in process memory. Nothing survives a restart,
// so it is meant for tests and throwaway sessions.
type LocalCartStore struct {
	mu    sync.RWMutex
	store map[string]string
	log   logrus.FieldLogger
}

// NewLocalCartStore returns an empty in-memory store.
func NewLocalCartStore(log logrus.FieldLogger) *LocalCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalCartStore{
		store: make(map[string]string),
		log:   log.WithField("store", "local"),
	}
}

// Initialize has nothing to connect to.
func (l *LocalCartStore) Initialize(ctx context.Context) error {
	l.log.Debug("LocalCartStore initialized")
	return nil
}

// GetItem returns the value stored under key.
func (l *LocalCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	l.log.WithField("key", key).Debug("LocalCartStore: GetItem called")
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.store[key]
	return v, ok, nil
}

// SetItem replaces the value stored under key.
func (l *LocalCartStore) SetItem(ctx context.Context, key, value string) error {
	l.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("LocalCartStore: SetItem called")
	l.mu.Lock()
	defer l.mu.Unlock()

	l.store[key] = value
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (l *LocalCartStore) RemoveItem(ctx context.Context, key string) error {
	l.log.WithField("key", key).Debug("LocalCartStore: RemoveItem called")
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.store, key)
	return nil
}

// Ping always succeeds.
func (l *LocalCartStore) Ping(ctx context.Context) bool {
	return true
}

func (l *LocalCartStore) Close() error {
	return nil
}
