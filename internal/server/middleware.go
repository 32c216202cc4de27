package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/observability/logger"
	"github.com/smallbiznis/sekarnet/internal/reqctx"
	"go.uber.org/zap"
)

const (
	contextCallerKey = "caller"

	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// AuthRequired resolves the bearer access token to the caller stored in the
// users table. Inactive accounts are rejected here.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		caller, err := s.authsvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, authdomain.ErrUserNotFound) {
				err = ErrUnauthorized
			}
			AbortWithError(c, err)
			return
		}

		setCaller(c, caller)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and carries on
// anonymously otherwise.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if caller, err := s.authsvc.Authenticate(c.Request.Context(), raw); err == nil {
				setCaller(c, caller)
			}
		}
		c.Next()
	}
}

// RateLimit applies the per-caller request budget, keyed by client IP for
// anonymous requests.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		role := authdomain.Role("anonymous")
		subject := "ip:" + c.ClientIP()
		if caller, ok := callerFromContext(c); ok {
			role = caller.Role
			subject = "user:" + caller.Subject()
		}

		endpoint := normalizeRateLimitEndpoint(c)
		res := s.limiter.Allow(c.Request.Context(), role, subject, endpoint)
		if res == nil {
			c.Next()
			return
		}

		c.Header(headerRateLimit, strconv.Itoa(res.Limit))
		c.Header(headerRateRemaining, strconv.Itoa(res.Remaining))
		c.Header(headerRateReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.FromContext(c.Request.Context()).Warn("rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("role", string(role)),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func setCaller(c *gin.Context, caller authdomain.Caller) {
	c.Set(contextCallerKey, caller)
	c.Set(logger.ContextCallerRole, string(caller.Role))
	ctx := reqctx.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), caller.Subject())
	c.Request = c.Request.WithContext(ctx)
}

func callerFromContext(c *gin.Context) (authdomain.Caller, bool) {
	raw, ok := c.Get(contextCallerKey)
	if !ok {
		return authdomain.Caller{}, false
	}
	caller, ok := raw.(authdomain.Caller)
	return caller, ok
}

// mustCaller is used by handlers behind AuthRequired.
func mustCaller(c *gin.Context) (authdomain.Caller, bool) {
	caller, ok := callerFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
	}
	return caller, ok
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
