package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sekarnet/internal/clock"
)

// Entries older than the window are trimmed before counting, so the limit holds
// for any window-long span rather than per fixed bucket.
const slidingWindowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])

local allowed = 0
if count < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", KEYS[1], window)

local oldest = now
local first = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if first[2] ~= nil then
  oldest = tonumber(first[2])
end

return {allowed, count, oldest}
`

// Result describes one limiter decision in terms of the X-RateLimit headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type SlidingWindow struct {
	client redis.Scripter
	script *redis.Script
	clock  clock.Clock
}

func NewSlidingWindow(client redis.Scripter, clk clock.Clock) *SlidingWindow {
	if client == nil {
		return nil
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &SlidingWindow{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		clock:  clk,
	}
}

func (w *SlidingWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if w == nil || w.client == nil {
		return nil, errors.New("rate limiter not configured")
	}
	if err := validate(key, limit, window); err != nil {
		return nil, err
	}

	now := w.clock.Now()
	windowMs := window.Milliseconds()
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()

	res, err := w.script.Run(ctx, w.client, []string{key}, now.UnixMilli(), windowMs, limit, member).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed := castToInt(res[0]) == 1
	count := int(castToInt(res[1]))
	oldest := time.UnixMilli(castToInt(res[2]))

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   oldest.Add(window),
	}
	if !allowed {
		result.RetryAfter = max(result.ResetAt.Sub(now), 0)
	}
	return result, nil
}

func validate(key string, limit int, window time.Duration) error {
	if key == "" {
		return errors.New("rate limiter key is empty")
	}
	if limit <= 0 {
		return errors.New("rate limiter limit must be positive")
	}
	if window < time.Millisecond {
		return errors.New("rate limiter window must be at least 1ms")
	}
	return nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}
