// Package cachetest holds a behavioural suite every cache adapter must pass.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/linkshop/internal/port/cache"
)

// Run exercises Set/Get/Delete/overwrite semantics against c.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "linkshop:tenant:slug:tea", []byte("v"), time.Minute))
		val, found, err := c.Get(ctx, "linkshop:tenant:slug:tea")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v", string(val))
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "linkshop:missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "linkshop:del", []byte("x"), time.Minute)
		require.NoError(t, c.Delete(ctx, "linkshop:del"))
		_, found, err := c.Get(ctx, "linkshop:del")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		assert.NoError(t, c.Delete(ctx, "linkshop:never"))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "linkshop:ow", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "linkshop:ow", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "linkshop:ow")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v2", string(val))
	})

	t.Run("JSONRoundTrip", func(t *testing.T) {
		type entry struct{ Slug string }
		require.NoError(t, cache.SetJSON(ctx, c, "linkshop:json", entry{Slug: "tea"}, time.Minute))
		got, found, err := cache.GetJSON[entry](ctx, c, "linkshop:json")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "tea", got.Slug)
	})
}
