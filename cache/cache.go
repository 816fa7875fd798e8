// Package cache keeps rendered public project payloads in redis.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/morf1ng/105site/logutils"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "projects:"
	generationKey = keyPrefix + "gen"
)

// ListKey is the key of the public project list at generation gen.
func ListKey(gen int64) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":list"
}

// ProjectKey is the key of one project detail payload at generation gen.
func ProjectKey(gen int64, id uint) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + strconv.FormatUint(uint64(id), 10)
}

// Cache stores JSON payloads under generation scoped keys. Invalidate moves
// every reader to a new generation, so a payload loaded before a write and
// stored after it is never served. Failures are logged and reported as a
// miss, a broken cache never fails a request.
type Cache interface {
	// Generation reports the current generation. ok is false when the
	// cache cannot be used for this request.
	Generation(ctx context.Context) (gen int64, ok bool)
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	Invalidate(ctx context.Context)
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Generation(ctx context.Context) (int64, bool) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logutils.Log.Warn("cache generation: ", err)
		return 0, false
	}
	return gen, true
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logutils.Log.WithField("key", key).Warn("cache get: ", err)
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, payload []byte) {
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		logutils.Log.WithField("key", key).Warn("cache set: ", err)
	}
}

// Invalidate bumps the generation. Payloads of older generations expire
// with their TTL.
func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		logutils.Log.Warn("cache invalidate: ", err)
	}
}

// Noop is used when no redis address is configured.
type Noop struct{}

func (Noop) Generation(context.Context) (int64, bool)   { return 0, false }
func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Noop) Set(context.Context, string, []byte)        {}
func (Noop) Invalidate(context.Context)                 {}

// New returns a redis backed cache, or Noop when addr is empty.
func New(addr, password string, db int, ttl time.Duration) Cache {
	if addr == "" {
		return Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedis(client, ttl)
}
