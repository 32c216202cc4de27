package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sekarnet/internal/reqctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sekarnet/http"

// GinMiddleware opens a server span per request, continuing any upstream trace.
// It must run after the logging middleware so the request id is available.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		if requestID := reqctx.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{attribute.Int("http.status_code", status)}
		if role := c.GetString("caller_role"); role != "" {
			attrs = append(attrs, attribute.String("enduser.role", role))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				span.RecordError(SafeError(last.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
