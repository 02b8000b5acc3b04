package cart

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoProvider means the cart was requested from a context that no provider
// scope was set up on. It is a wiring bug, never a data problem.
var ErrNoProvider = errors.New("cart must be used within a cart provider scope")

type providerKey struct{}

// NewContext returns a child of ctx that provides s to everything below it.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, providerKey{}, s)
}

// FromContext returns the store provided on ctx.
func FromContext(ctx context.Context) (*Store, error) {
	s, ok := ctx.Value(providerKey{}).(*Store)
	if !ok || s == nil {
		return nil, ErrNoProvider
	}
	return s, nil
}

// MustFromContext is FromContext for call sites where a missing provider can
// only be a programming error. It panics with ErrNoProvider.
func MustFromContext(ctx context.Context) *Store {
	s, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return s
}
