package mpesa

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/smes-pos/smes-backend/pkg/logger"
)

// TokenCache stores the OAuth token until validUntil (expiry minus buffer).
type TokenCache interface {
	Get(ctx context.Context, now time.Time) (string, bool)
	Set(ctx context.Context, token string, validUntil time.Time)
	Invalidate(ctx context.Context)
}

// MemoryTokenCache keeps the token in process memory.
type MemoryTokenCache struct {
	mu         sync.RWMutex
	token      string
	validUntil time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (m *MemoryTokenCache) Get(_ context.Context, now time.Time) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" || !now.Before(m.validUntil) {
		return "", false
	}
	return m.token, true
}

func (m *MemoryTokenCache) Set(_ context.Context, token string, validUntil time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.validUntil = validUntil
}

func (m *MemoryTokenCache) Invalidate(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.validUntil = time.Time{}
}

// RedisStore is the subset of pkg/redis.Client the shared cache needs.
type RedisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	MpesaTokenKey(shortCode string) string
}

// RedisTokenCache shares one token across API replicas. Redis TTL enforces expiry.
type RedisTokenCache struct {
	store RedisStore
	key   string
	logg  *logger.Logger
	now   func() time.Time
}

func NewRedisTokenCache(store RedisStore, shortCode string, logg *logger.Logger) *RedisTokenCache {
	return &RedisTokenCache{
		store: store,
		key:   store.MpesaTokenKey(shortCode),
		logg:  logg,
		now:   time.Now,
	}
}

func (r *RedisTokenCache) Get(ctx context.Context, _ time.Time) (string, bool) {
	token, err := r.store.Get(ctx, r.key)
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.warn(ctx, "mpesa token cache read failed", err)
		}
		return "", false
	}
	return token, token != ""
}

func (r *RedisTokenCache) Set(ctx context.Context, token string, validUntil time.Time) {
	ttl := validUntil.Sub(r.now())
	if ttl <= 0 {
		return
	}
	if err := r.store.Set(ctx, r.key, token, ttl); err != nil {
		r.warn(ctx, "mpesa token cache write failed", err)
	}
}

func (r *RedisTokenCache) Invalidate(ctx context.Context) {
	if err := r.store.Del(ctx, r.key); err != nil {
		r.warn(ctx, "mpesa token cache invalidate failed", err)
	}
}

func (r *RedisTokenCache) warn(ctx context.Context, msg string, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), msg)
}
