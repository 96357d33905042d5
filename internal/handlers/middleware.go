package handlers

import (
	"strconv"
	"time"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/logging"
	"github.com/imrishuroy/go-paid-orderflow/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"

	RoleAdmin = "admin"

	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

// RequestContext extracts W3C trace context, opens a server span, and puts a
// request-scoped logger carrying request_id and trace ids into the request
// context. It writes one access log line per request.
func RequestContext(base *zap.Logger, tracer trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		tracer = otel.Tracer("paid-orderflow/http")
	}
	prop := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		start := time.Now()
		ctx := prop.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)

		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := span.SpanContext(); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := base.With(fields...)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(ctx, reqLogger))

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		reqLogger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}

// CountRequests records one sample per request with low-cardinality labels.
func CountRequests(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Identity resolves the caller set by the upstream authorizer. When an API
// Gateway context is present it is the only source: client headers are
// ignored and a missing role means no role. Without one (local runs) the
// X-User-ID and X-User-Role headers stamped by the fronting proxy are used.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role string
		if apigw, ok := core.GetAPIGatewayContextFromContext(c.Request.Context()); ok {
			userID, _ = apigw.Authorizer["principalId"].(string)
			role, _ = apigw.Authorizer["role"].(string)
		} else {
			userID, role = c.GetHeader(HeaderUserID), c.GetHeader(HeaderUserRole)
		}
		if userID == "" {
			fail(c, 401, "Not authorized, no token")
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// RequireAdmin must run after Identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRole) != RoleAdmin {
			fail(c, 403, "Not authorized as an admin")
			return
		}
		c.Next()
	}
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
