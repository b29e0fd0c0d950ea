package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/rl1809/sweet-shop/internal/core/domain"
	"github.com/rl1809/sweet-shop/internal/core/service"
	"github.com/rl1809/sweet-shop/internal/observability"
	"github.com/rl1809/sweet-shop/internal/pkg/logging"
)

const (
	RequestIDHeader = "X-Request-ID"
	identityKey     = "identity"
)

// RequestLogger injects a request-scoped logger into the request context and
// logs one line per request once the handler chain is done.
func RequestLogger(base *zap.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	prop := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		start := time.Now()
		ctx := prop.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(RequestIDHeader, rid)

		reqLogger := logging.WithTrace(ctx, base.With(zap.String("request_id", rid)))
		c.Request = c.Request.WithContext(logging.NewContext(ctx, reqLogger))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)
		metrics.ObserveRequest("http", route, strconv.Itoa(status), latency.Seconds())

		logFields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if identity, ok := c.Get(identityKey); ok {
			logFields = append(logFields, zap.String("user_id", identity.(domain.Identity).UserID))
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, zap.String("error", c.Errors.Last().Error()))
		}
		if status >= 500 {
			reqLogger.Error("http_request", logFields...)
			return
		}
		reqLogger.Info("http_request", logFields...)
	}
}

// Authenticate resolves the bearer token into an identity or aborts with 401.
func Authenticate(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authorize(c.Request.Context(), BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityFrom(c).IsAdmin() {
			writeError(c, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

// BearerToken strips the "Bearer" scheme from an Authorization value. A bare
// token is returned as is.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return header
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}
