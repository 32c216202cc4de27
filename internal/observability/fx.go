package observability

import (
	"github.com/smallbiznis/sekarnet/internal/observability/logger"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	"github.com/smallbiznis/sekarnet/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.loggerConfig,
		Config.tracingConfig,
		Config.metricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// the tracer provider has no consumers but must be installed globally
	fx.Invoke(func(trace.TracerProvider) {}),
)
