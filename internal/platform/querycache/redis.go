package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared between server instances. Each collection has a
// generation counter; entries are keyed by generation so that invalidation is
// a single INCR and entries from older generations simply expire.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis parses a redis:// URL and returns a cache client.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisClient(redis.NewClient(opts), ttl), nil
}

func NewRedisClient(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: "clinic:cache"}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) genKey(collection string) string {
	return r.prefix + ":" + collection + ":gen"
}

func (r *Redis) entryKey(collection string, gen int64, key string) string {
	return strings.Join([]string{r.prefix, collection, fmt.Sprint(gen), key}, ":")
}

func (r *Redis) Generation(ctx context.Context, collection string) (int64, error) {
	gen, err := r.rdb.Get(ctx, r.genKey(collection)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *Redis) Get(ctx context.Context, collection string, gen int64, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.entryKey(collection, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under gen, the generation read before the result was
// loaded. If a write has since advanced the counter the entry is unreachable.
func (r *Redis) Set(ctx context.Context, collection string, gen int64, key string, value []byte) error {
	return r.rdb.Set(ctx, r.entryKey(collection, gen, key), value, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, collection string) error {
	return r.rdb.Incr(ctx, r.genKey(collection)).Err()
}
