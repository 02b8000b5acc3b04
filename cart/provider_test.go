package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("without provider", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			s, err := FromContext(context.Background())
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrNoProvider)
		}
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := FromContext(NewContext(context.Background(), nil))
		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("with provider", func(t *testing.T) {
		want := NewStore(newFakeStorage(), WithLogger(quietLogger()))
		ctx := NewContext(context.Background(), want)

		got, err := FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, want, got)

		child, cancel := context.WithCancel(ctx)
		defer cancel()
		assert.Same(t, want, MustFromContext(child))
	})
}

func TestMustFromContext_Panics(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.PanicsWithError(t, ErrNoProvider.Error(), func() {
			MustFromContext(context.Background())
		})
	}
}
