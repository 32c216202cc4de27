package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/sekarnet/internal/reqctx"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"

	// ContextCallerRole is the gin key the auth middleware fills with the caller's role.
	ContextCallerRole = "caller_role"
)

type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to the error_type and error_code fields.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware seeds the request context (request id, client IP, user agent)
// and writes one access-log line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := reqctx.WithRequestID(c.Request.Context(), requestID)
		ctx = reqctx.WithIPAddress(ctx, c.ClientIP())
		ctx = reqctx.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if role := c.GetString(ContextCallerRole); role != "" {
			fields = append(fields, zap.String("role", role))
		}
		if last := c.Errors.Last(); last != nil {
			errType, errCode := "error", last.Err.Error()
			if cfg.ErrorClassifier != nil {
				errType, errCode = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", errCode))
			if cfg.Debug && status >= http.StatusInternalServerError {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		log := FromContext(c.Request.Context())
		switch {
		case route == "/health" || route == "/metrics":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
