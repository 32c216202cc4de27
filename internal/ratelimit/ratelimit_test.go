package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisWindow(t *testing.T, clk clock.Clock) *SlidingWindow {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlidingWindow(client, clk)
}

func TestSlidingWindowLimitsWithinWindow(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	w := newRedisWindow(t, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := w.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		clk.Advance(10 * time.Second)
	}

	res, err := w.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC), res.ResetAt.UTC())
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	clk.Advance(31 * time.Second)
	res, err = w.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	other, err := w.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, other.Remaining)
}

func TestSlidingWindowRejectsBadInput(t *testing.T) {
	w := newRedisWindow(t, clock.NewFakeClock(time.Now()))

	_, err := w.Allow(context.Background(), "", 1, time.Minute)
	assert.Error(t, err)
	_, err = w.Allow(context.Background(), "k", 0, time.Minute)
	assert.Error(t, err)
}

func TestLocalLimiter(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	l := NewLocal(clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.InDelta(t, 30, res.RetryAfter.Seconds(), 0.01)

	clk.Advance(31 * time.Second)
	res, err = l.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

type failingBackend struct{}

func (failingBackend) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	l := newLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}, failingBackend{}, zap.NewNop(), nil)
	assert.Nil(t, l.Allow(context.Background(), authdomain.RoleCustomer, "1", "/api/v1/bills"))
}

func TestLimiterUsesAdminBudget(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	l := newLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, AdminPerMinute: 3, Window: time.Minute}, NewLocal(clk), zap.NewNop(), nil)
	ctx := context.Background()

	res := l.Allow(ctx, authdomain.RoleCustomer, "7", "/x")
	require.NotNil(t, res)
	assert.True(t, res.Allowed)
	res = l.Allow(ctx, authdomain.RoleCustomer, "7", "/x")
	assert.False(t, res.Allowed)

	for i := 0; i < 3; i++ {
		res = l.Allow(ctx, authdomain.RoleAdmin, "8", "/x")
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
	}

	disabled := newLimiter(config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1}, NewLocal(clk), zap.NewNop(), nil)
	assert.Nil(t, disabled.Allow(ctx, authdomain.RoleCustomer, "7", "/x"))
}
