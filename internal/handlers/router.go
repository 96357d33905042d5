package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-paid-orderflow/internal/metrics"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Handlers HandlerConfig
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Metrics  *metrics.Metrics
}

// NewRouter builds the gin engine: health and metrics at the root, the
// authenticated API under /api.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestContext(logger, cfg.Tracer), CountRequests(cfg.Metrics))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api", Identity())
	RegisterPaymentRoutes(api, cfg.Handlers)
	RegisterOrdersRoutes(api, cfg.Handlers)

	return r
}
