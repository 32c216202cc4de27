package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLimiter),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

type LimiterParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Redis   *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

func NewLimiter(p LimiterParams) *Limiter {
	log := p.Log.Named("ratelimit")

	var b backend
	if p.Redis != nil {
		b = NewSlidingWindow(p.Redis, p.Clock)
		log.Info("rate limiter using redis sliding window", zap.String("addr", p.Config.Redis.Addr))
	} else {
		b = NewLocal(p.Clock)
		log.Info("rate limiter using in-process buckets")
	}
	return newLimiter(p.Config.RateLimit, b, log, p.Metrics)
}
