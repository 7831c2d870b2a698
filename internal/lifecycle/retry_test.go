package lifecycle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/lifecycle"
)

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("retries conflicts until success", func(t *testing.T) {
		calls := 0
		err := lifecycle.RetryOnConflict(ctx, 5, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: lock timeout", assets.ErrConflict)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("never retries invalid state", func(t *testing.T) {
		calls := 0
		err := lifecycle.RetryOnConflict(ctx, 5, func(context.Context) error {
			calls++
			return assets.ErrInvalidState
		})
		require.ErrorIs(t, err, assets.ErrInvalidState)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		calls := 0
		err := lifecycle.RetryOnConflict(ctx, 3, func(context.Context) error {
			calls++
			return assets.ErrConflict
		})
		require.ErrorIs(t, err, assets.ErrConflict)
		assert.Equal(t, 3, calls)
	})

	t.Run("cancellation reports the last conflict", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		err := lifecycle.RetryOnConflict(cctx, 1000, func(context.Context) error {
			return assets.ErrConflict
		})
		require.ErrorIs(t, err, assets.ErrConflict)
	})
}
