package client

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, TokenKey, "v"))
	v, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete(ctx, TokenKey))
	_, ok, _ = s.Get(ctx, TokenKey)
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	s := NewRedisStore(rdb, "session:42:", time.Hour)

	_, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, TokenKey, "tok"))
	assert.True(t, mr.Exists("session:42:pixel-jwt"))
	assert.Equal(t, time.Hour, mr.TTL("session:42:pixel-jwt"))

	v, ok, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	require.NoError(t, s.Delete(ctx, TokenKey))
	assert.False(t, mr.Exists("session:42:pixel-jwt"))
}

func TestSession_AnonymousIDPersistsInStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, "", 0)

	first, err := New("https://app.example.com", WithStore(store))
	require.NoError(t, err)
	id, err := first.AnonymousID(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	second, err := New("https://app.example.com", WithStore(store))
	require.NoError(t, err)
	again, err := second.AnonymousID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}
