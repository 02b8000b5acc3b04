// d8cart/cartstore/cartstore.go

package cartstore

import (
	"context"
)

// ICartStore defines the key-value operations the cart needs from device storage.
// Values are opaque serialized blobs; the store never interprets them.
type ICartStore interface {
	Initialize(ctx context.Context) error

	// GetItem returns the value stored under key. ok is false when the key is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error

	Ping(ctx context.Context) bool
	Close() error
}
