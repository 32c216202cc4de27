package ratelimit

import (
	"context"
	"strings"
	"time"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyRequests = "ratelimit:requests:"

type backend interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limiter applies the per-caller request budget. Admins get a larger budget.
// Backend errors fail open.
type Limiter struct {
	enabled bool
	backend backend
	log     *zap.Logger
	metrics *metrics.Metrics

	limit      int
	adminLimit int
	window     time.Duration
}

func newLimiter(cfg config.RateLimitConfig, b backend, log *zap.Logger, m *metrics.Metrics) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		enabled:    cfg.Enabled && b != nil,
		backend:    b,
		log:        log,
		metrics:    m,
		limit:      cfg.RequestsPerMinute,
		adminLimit: cfg.AdminPerMinute,
		window:     window,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow returns nil when limiting is disabled or the backend failed.
func (l *Limiter) Allow(ctx context.Context, role authdomain.Role, subject, endpoint string) *Result {
	if !l.Enabled() {
		return nil
	}

	limit := l.limit
	if role == authdomain.RoleAdmin && l.adminLimit > 0 {
		limit = l.adminLimit
	}
	if limit <= 0 {
		return nil
	}

	res, err := l.backend.Allow(ctx, keyRequests+strings.TrimSpace(subject), limit, l.window)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.String("endpoint", endpoint), zap.Error(err))
		l.metrics.RecordRateLimitDenied(ctx, string(role), endpoint, "backend_error")
		return nil
	}

	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, string(role), endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, string(role), endpoint, "window")
	}
	return res
}
