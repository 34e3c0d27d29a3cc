package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LookupCache caches read-mostly lookups shared across requests.
// Invalidate drops every entry at once.
type LookupCache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Invalidate(ctx context.Context)
}

type memoryLookup[V any] struct {
	entries Cache[string, V]
	ttl     time.Duration
}

// NewMemoryLookup keeps entries in process memory.
func NewMemoryLookup[V any](ttl time.Duration) LookupCache[V] {
	return &memoryLookup[V]{entries: NewTTLCache[string, V](), ttl: ttl}
}

func (m *memoryLookup[V]) Get(_ context.Context, key string) (V, bool) {
	return m.entries.Get(cacheKey(key))
}

func (m *memoryLookup[V]) Set(_ context.Context, key string, value V) {
	m.entries.Set(cacheKey(key), value, m.ttl)
}

func (m *memoryLookup[V]) Invalidate(context.Context) {
	m.entries.Purge()
}

// redisLookup stores JSON values under a generation-scoped key so that
// Invalidate is a single INCR instead of a keyspace scan.
type redisLookup[V any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisLookup shares entries across replicas. Redis failures degrade to misses.
func NewRedisLookup[V any](client redis.UniversalClient, prefix string, ttl time.Duration, log *zap.Logger) LookupCache[V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisLookup[V]{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (r *redisLookup[V]) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.prefix+":gen").Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (r *redisLookup[V]) key(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", r.prefix, gen, cacheKey(key))
}

func (r *redisLookup[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	gen, err := r.generation(ctx)
	if err != nil {
		r.log.Warn("cache generation read failed", zap.String("prefix", r.prefix), zap.Error(err))
		return zero, false
	}
	raw, err := r.client.Get(ctx, r.key(gen, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("cache read failed", zap.String("prefix", r.prefix), zap.Error(err))
		}
		return zero, false
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		r.log.Warn("cache decode failed", zap.String("prefix", r.prefix), zap.Error(err))
		return zero, false
	}
	return value, true
}

func (r *redisLookup[V]) Set(ctx context.Context, key string, value V) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.log.Warn("cache generation read failed", zap.String("prefix", r.prefix), zap.Error(err))
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		r.log.Warn("cache encode failed", zap.String("prefix", r.prefix), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.key(gen, key), raw, r.ttl).Err(); err != nil {
		r.log.Warn("cache write failed", zap.String("prefix", r.prefix), zap.Error(err))
	}
}

func (r *redisLookup[V]) Invalidate(ctx context.Context) {
	if err := r.client.Incr(ctx, r.prefix+":gen").Err(); err != nil {
		r.log.Warn("cache invalidate failed", zap.String("prefix", r.prefix), zap.Error(err))
	}
}

func cacheKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(normalized, "|")
}
