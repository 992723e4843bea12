// Package limiter counts requests per client in fixed windows stored in redis
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type RedisLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration, log *zap.SugaredLogger) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		limit:  int64(limit),
		window: window,
		log:    log,
		now:    time.Now,
	}
}

func (l *RedisLimiter) windowKey(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("v1:ratelimit:%s:%d", key, bucket)
}

// Allow increments the counter for the current window and reports whether
// it is still within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	count := incr.Val()
	if count > l.limit {
		l.log.Debugw("Rate limit exceeded", "key", key, "count", count, "limit", l.limit)
		return false, nil
	}
	return true, nil
}
