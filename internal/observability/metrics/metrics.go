package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes portal-level instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	subscriptionTransitions metric.Int64Counter
	billPaymentEvents       metric.Int64Counter
	proofUploads            metric.Int64Counter
	authorizationDenied     metric.Int64Counter
	rateLimitAllowed        metric.Int64Counter
	rateLimitDenied         metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sekarnet"
	}
	meter := provider.Meter(name)

	subscriptionTransitions, err := meter.Int64Counter("sekarnet_subscription_transitions_total")
	if err != nil {
		return nil, err
	}
	billPaymentEvents, err := meter.Int64Counter("sekarnet_bill_payment_events_total")
	if err != nil {
		return nil, err
	}
	proofUploads, err := meter.Int64Counter("sekarnet_payment_proof_uploads_total")
	if err != nil {
		return nil, err
	}
	authorizationDenied, err := meter.Int64Counter("sekarnet_authorization_denied_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("sekarnet_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("sekarnet_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		subscriptionTransitions: subscriptionTransitions,
		billPaymentEvents:       billPaymentEvents,
		proofUploads:            proofUploads,
		authorizationDenied:     authorizationDenied,
		rateLimitAllowed:        rateLimitAllowed,
		rateLimitDenied:         rateLimitDenied,
	}, nil
}

func (m *Metrics) RecordSubscriptionTransition(ctx context.Context, action, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.subscriptionTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBillPaymentEvent(ctx context.Context, eventType, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.billPaymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordProofUpload(ctx context.Context, variant, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("variant", strings.TrimSpace(variant)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.proofUploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAuthorizationDenied(ctx context.Context, level, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("level", strings.TrimSpace(level)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.authorizationDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, role, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, role, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Entity ids and usernames never appear here.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"role":        {},
	"level":       {},
	"endpoint":    {},
	"status_code": {},
	"method":      {},
	"route":       {},
	"action":      {},
	"status":      {},
	"variant":     {},
	"outcome":     {},
	"event_type":  {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
