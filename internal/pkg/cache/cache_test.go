package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewFromClient(client)
}

func TestCache_SetAndGetJSON(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := c.SetJSON(ctx, "groups:explore", entry{Name: "Viagem 2024", Count: 3}, time.Minute)
	require.NoError(t, err)

	var got entry
	err = c.GetJSON(ctx, "groups:explore", &got)
	require.NoError(t, err)
	assert.Equal(t, "Viagem 2024", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestCache_GetJSON_Miss(t *testing.T) {
	c := setupTestCache(t)

	var dest map[string]any
	err := c.GetJSON(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "key1", "value", time.Minute))
	require.NoError(t, c.Delete(ctx, "key1"))

	var dest string
	err := c.GetJSON(ctx, "key1", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting a missing key is not an error
	assert.NoError(t, c.Delete(ctx, "key1"))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "groups:explore:limit=20", 1, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "groups:explore:limit=50", 2, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "other", 3, time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "groups:explore:"))

	var dest int
	assert.ErrorIs(t, c.GetJSON(ctx, "groups:explore:limit=20", &dest), ErrCacheMiss)
	assert.ErrorIs(t, c.GetJSON(ctx, "groups:explore:limit=50", &dest), ErrCacheMiss)
	assert.NoError(t, c.GetJSON(ctx, "other", &dest))
}
