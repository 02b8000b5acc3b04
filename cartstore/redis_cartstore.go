// d8cart/cartstore/redis_cartstore.go

package cartstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// cartField is the hash field holding the serialized cart under each key.
const cartField = "cart"

const (
	defaultConnectAttempts = 30
	maxConnectBackoff      = 30 * time.Second
)

// RedisCartStore is a cart store backed by Redis.
type RedisCartStore struct {
	client   *redis.Client
	log      logrus.FieldLogger
	attempts int
}

// NewRedisCartStore accepts a Redis connection string ("hostname:port" or a
// redis:// URL) and returns a store instance. It does not dial; call Initialize.
func NewRedisCartStore(redisAddr string, log logrus.FieldLogger) *RedisCartStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a redis:// URL, use it as a plain address.
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisCartStore{
		client:   client,
		log:      log.WithFields(logrus.Fields{"store": "redis", "addr": opts.Addr}),
		attempts: defaultConnectAttempts,
	}
}

// Initialize waits for Redis to answer a Ping, backing off exponentially
// between attempts.
func (r *RedisCartStore) Initialize(ctx context.Context) error {
	r.log.Info("RedisCartStore: initializing connection...")

	for i := 0; i < r.attempts; i++ {
		if r.Ping(ctx) {
			r.log.WithField("attempt", i+1).Info("RedisCartStore initialized successfully")
			return nil
		}

		backoff := time.Duration(1000*(1<<uint(i))) * time.Millisecond
		if backoff > maxConnectBackoff || backoff <= 0 {
			backoff = maxConnectBackoff
		}
		r.log.WithFields(logrus.Fields{"attempt": i + 1, "backoff": backoff}).Warn("RedisCartStore: ping failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "redis initialize cancelled")
		case <-time.After(backoff):
		}
	}
	return errors.Errorf("failed to connect to Redis after %d attempts", r.attempts)
}

// GetItem reads the cart field of the hash stored at key.
func (r *RedisCartStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	r.log.WithField("key", key).Debug("RedisCartStore: GetItem called")

	val, err := r.client.HGet(ctx, key, cartField).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis HGet %q", key)
	}
	return val, true, nil
}

// SetItem overwrites the cart field of the hash stored at key.
func (r *RedisCartStore) SetItem(ctx context.Context, key, value string) error {
	r.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("RedisCartStore: SetItem called")

	if err := r.client.HSet(ctx, key, cartField, value).Err(); err != nil {
		return errors.Wrapf(err, "redis HSet %q", key)
	}
	return nil
}

// RemoveItem deletes the hash stored at key.
func (r *RedisCartStore) RemoveItem(ctx context.Context, key string) error {
	r.log.WithField("key", key).Debug("RedisCartStore: RemoveItem called")

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "redis Del %q", key)
	}
	return nil
}

// Ping reports whether Redis answers within five seconds.
func (r *RedisCartStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.WithError(err).Debug("RedisCartStore: Ping failed")
		return false
	}
	return true
}

func (r *RedisCartStore) Close() error {
	return r.client.Close()
}
