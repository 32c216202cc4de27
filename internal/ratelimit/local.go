package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/smallbiznis/sekarnet/internal/cache"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"golang.org/x/time/rate"
)

// Local is the in-process limiter used when no redis is configured. Each key
// gets a token bucket refilled at limit per window with burst equal to limit.
type Local struct {
	mu       sync.Mutex
	limiters cache.Cache[*rate.Limiter]
	clock    clock.Clock
}

func NewLocal(clk clock.Clock) *Local {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Local{limiters: cache.NewTTLCache[*rate.Limiter](), clock: clk}
}

func (l *Local) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if err := validate(key, limit, window); err != nil {
		return nil, err
	}

	perSecond := rate.Limit(float64(limit) / window.Seconds())
	now := l.clock.Now()

	l.mu.Lock()
	cacheKey := key + ":" + window.String()
	limiter, ok := l.limiters.Get(cacheKey)
	if !ok || limiter.Burst() != limit {
		limiter = rate.NewLimiter(perSecond, limit)
	}
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)
	l.limiters.Set(cacheKey, limiter, 2*window)
	l.mu.Unlock()

	missing := float64(limit) - tokens
	untilFull := time.Duration(missing / float64(perSecond) * float64(time.Second))

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(int(math.Floor(tokens)), 0),
		ResetAt:   now.Add(untilFull),
	}
	if !allowed {
		result.RetryAfter = time.Duration((1 - tokens) / float64(perSecond) * float64(time.Second))
	}
	return result, nil
}
