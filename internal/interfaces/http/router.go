package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyQTO/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyQTO/internal/interfaces/http/middleware"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// DefaultMetricsPath is where the Prometheus registry is exposed.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.  Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	// Handlers
	TakeoffHandler *handlers.TakeoffHandler
	ReportHandler  *handlers.ReportHandler
	PriceHandler   *handlers.PriceHandler
	HealthHandler  *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	Logging     middleware.LoggingConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	HTTPMetrics middleware.HTTPMetrics

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration.  Global middleware runs in the order request id, recovery,
// CORS, logging, metrics, rate limit.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics, metricsPath(cfg)))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: errors.ErrCodeNotFound.String(), Message: "route not found"})
	})

	// --- Probes and metrics ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET(metricsPath(cfg), gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	registerTakeoffRoutes(api, cfg.TakeoffHandler, cfg.ReportHandler)
	registerPriceRoutes(api, cfg.PriceHandler)

	return r
}

func metricsPath(cfg RouterConfig) string {
	if cfg.MetricsPath == "" {
		return DefaultMetricsPath
	}
	return cfg.MetricsPath
}

// registerTakeoffRoutes mounts takeoff endpoints under /takeoffs.
func registerTakeoffRoutes(r *gin.RouterGroup, h *handlers.TakeoffHandler, reports *handlers.ReportHandler) {
	g := r.Group("/takeoffs")
	if h != nil {
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
	}
	if reports != nil {
		g.GET("/:id/report", reports.Render)
		g.GET("/:id/download", reports.Download)
	}
}

// registerPriceRoutes mounts the price table endpoints under /prices.
func registerPriceRoutes(r *gin.RouterGroup, h *handlers.PriceHandler) {
	if h == nil {
		return
	}
	g := r.Group("/prices")
	g.GET("", h.List)
	g.GET("/match", h.Match)
}

//Personal.AI order the ending
