package store

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

// DefaultRedisKey is the hash holding all counters
const DefaultRedisKey = "livecount:counters"

// RedisOptions configures a Redis store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Redis keeps counters in a single Redis hash, one field per counter
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "REDIS_UNAVAILABLE", "failed to reach redis").
			WithDetails(opts.Addr)
	}

	return NewRedisWithClient(client, opts.Key), nil
}

// NewRedisWithClient wraps an existing client. An empty key selects
// DefaultRedisKey.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Set implements Store
func (r *Redis) Set(ctx context.Context, name domain.CounterName, value int64) error {
	if err := r.client.HSet(ctx, r.key, string(name), value).Err(); err != nil {
		return storeError(err, "HSET")
	}
	return nil
}

// Add implements Store
func (r *Redis) Add(ctx context.Context, name domain.CounterName, delta int64) (int64, error) {
	value, err := r.client.HIncrBy(ctx, r.key, string(name), delta).Result()
	if err != nil {
		return 0, storeError(err, "HINCRBY")
	}
	return value, nil
}

// Delete implements Store
func (r *Redis) Delete(ctx context.Context, name domain.CounterName) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, string(name)).Result()
	if err != nil {
		return false, storeError(err, "HDEL")
	}
	return n > 0, nil
}

// All implements Store
func (r *Redis) All(ctx context.Context) (domain.Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, storeError(err, "HGETALL")
	}

	snapshot := make(domain.Snapshot, len(fields))
	for name, raw := range fields {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "CORRUPT_COUNTER", "stored value is not an integer").
				WithDetails(name)
		}
		snapshot[domain.CounterName(name)] = value
	}
	return snapshot, nil
}

// Close implements Store
func (r *Redis) Close() error {
	return r.client.Close()
}

func storeError(err error, command string) error {
	return errors.Wrap(err, errors.ErrorTypeInternal, "STORE_ERROR", "redis command failed").
		WithDetails(command)
}
