package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("role", "admin"),
		attribute.String("user_id", "456"),
		attribute.String("status", "paid"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "role" && attrs[1].Key != "role" {
		t.Fatalf("expected role to be retained")
	}
	if attrs[0].Key != "status" && attrs[1].Key != "status" {
		t.Fatalf("expected status to be retained")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordBillPaymentEvent(context.Background(), "verify", "paid")
	m.RecordSubscriptionTransition(context.Background(), "cancel", "cancelled")
	m.RecordRateLimitDenied(context.Background(), "customer", "/api/v1/bills", "window")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "sekarnet-test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	require.NotNil(t, m)
	m.RecordProofUpload(context.Background(), "qris", "accepted")
}
