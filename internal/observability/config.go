package observability

import (
	"strings"

	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/observability/logger"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	"github.com/smallbiznis/sekarnet/internal/observability/tracing"
)

// Config is the service identity plus the observability section of config.Config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	config.ObservabilityConfig
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "sekarnet"
	}
	return Config{
		ServiceName:         name,
		Environment:         strings.TrimSpace(cfg.Environment),
		Version:             strings.TrimSpace(cfg.AppVersion),
		ObservabilityConfig: cfg.Observability,
	}
}

// Debug enables stack traces and verbose request logs outside production-like
// environments or when LOG_LEVEL=debug.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) loggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelEndpoint,
		ExporterProtocol: c.OtelProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelEndpoint,
		ExporterProtocol: c.OtelProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
