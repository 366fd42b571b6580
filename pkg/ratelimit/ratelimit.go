package ratelimit

import (
	"context"
	"sync"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit", fx.Provide(New))

// Result describes the state of a fixed window after one hit.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (Result, error)
}

type Params struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

// New prefers the shared redis counter. The in-memory limiter is only correct
// for a single process and is meant for development.
func New(p Params) Limiter {
	limit := p.Config.RateLimit.Limit
	window := p.Config.RateLimit.Window
	if p.Redis != nil {
		return NewRedisLimiter(p.Redis, limit, window)
	}
	zap.L().Warn("[RateLimit] redis not configured, using in-memory limiter (single instance only)")
	return NewMemoryLimiter(limit, window)
}

type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, scope, subject string) (Result, error) {
	start, reset := windowBounds(l.now(), l.window)
	key := rediskey.BuildRateLimitKey(scope, subject, start.Unix())

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		_ = l.rdb.Expire(ctx, key, l.window).Err()
	}

	return buildResult(int(count), l.limit, reset.Sub(l.now())), nil
}

type bucket struct {
	count   int
	resetAt time.Time
}

type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, scope, subject string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := scope + ":" + subject

	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++

	return buildResult(b.count, l.limit, b.resetAt.Sub(now)), nil
}

func buildResult(count, limit int, untilReset time.Duration) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: count <= limit, Limit: limit, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = untilReset
	}
	return res
}

func windowBounds(now time.Time, window time.Duration) (time.Time, time.Time) {
	start := now.Truncate(window)
	return start, start.Add(window)
}
