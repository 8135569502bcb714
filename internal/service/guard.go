package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Guard holds one in-flight flag per key. Acquire fails with ErrInFlight while
// another holder has not released.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inflight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inflight[key]; ok {
		return nil, ErrInFlight
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisGuard shares in-flight flags between replicas. The TTL bounds how long
// a crashed holder can block a quote.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("checkout-inflight:%s", key)
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, g.rdb, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
				logger.Error().Err(err).Msgf("Error releasing in-flight flag %s", redisKey)
			}
		})
	}, nil
}
