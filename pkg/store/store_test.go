package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedis(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	s, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemory(),
		"redis":  s,
	}
}

func TestStoreSemantics(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Set(ctx, "clicks", 5))

			v, err := s.Add(ctx, "clicks", 1)
			require.NoError(t, err)
			assert.Equal(t, int64(6), v)

			v, err = s.Add(ctx, "fresh", -1)
			require.NoError(t, err)
			assert.Equal(t, int64(-1), v)

			all, err := s.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.Snapshot{"clicks": 6, "fresh": -1}, all)

			existed, err := s.Delete(ctx, "clicks")
			require.NoError(t, err)
			assert.True(t, existed)

			existed, err = s.Delete(ctx, "clicks")
			require.NoError(t, err)
			assert.False(t, existed)

			all, err = s.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.Snapshot{"fresh": -1}, all)
		})
	}
}

func TestRedisUsesHash(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 3))
	assert.Equal(t, "3", mr.HGet(DefaultRedisKey, "a"))
}

func TestRedisCorruptValue(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.HSet(DefaultRedisKey, "bad", "x")

	_, err := s.All(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestRedisCustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisWithClient(client, "test:counters")
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Set(context.Background(), "a", 1))
	assert.Equal(t, "1", mr.HGet("test:counters", "a"))
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}
