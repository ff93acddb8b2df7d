package app

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/turtacn/KeyQTO/internal/interfaces/http"
	"github.com/turtacn/KeyQTO/internal/interfaces/http/handlers"
	"github.com/turtacn/KeyQTO/internal/interfaces/http/middleware"
)

// HTTPOptions selects what the router exposes.
type HTTPOptions struct {
	Version string
	// API mounts the /api/v1 routes.  Without it only probes and metrics
	// are served, as the worker does.
	API bool
}

// Router builds the gin engine over the container.  The returned stop
// function releases the rate limiter.
func (c *Container) Router(opts HTTPOptions) (*gin.Engine, func()) {
	cfg := c.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	checkers := make([]handlers.HealthChecker, 0, len(c.checkers))
	for _, hc := range c.checkers {
		checkers = append(checkers, hc)
	}

	rc := httpapi.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(opts.Version, checkers...).WithObserver(c.Metrics),
		Logging:          middleware.DefaultLoggingConfig(),
		HTTPMetrics:      c.Metrics,
		Logger:           c.Logger.Named("http"),
		MetricsCollector: c.Collector,
		MetricsPath:      cfg.Metrics.Path,
	}
	if !cfg.Metrics.Enabled {
		rc.MetricsCollector = nil
	}

	stop := func() {}
	if opts.API {
		var queue handlers.RequestPublisher
		if c.Requests != nil {
			queue = c.Requests
		}
		var links handlers.DownloadLinker
		if c.Exporter != nil {
			links = c.Exporter
		}
		rc.TakeoffHandler = handlers.NewTakeoffHandler(c.Takeoffs, queue, cfg.Server.MaxBodySize, c.Logger.Named("http"))
		rc.ReportHandler = handlers.NewReportHandler(c.Takeoffs, nil, links)
		rc.PriceHandler = handlers.NewPriceHandler(c.Prices)

		if len(cfg.Server.CORSOrigins) > 0 {
			cors := middleware.DefaultCORSConfig()
			cors.AllowedOrigins = cfg.Server.CORSOrigins
			rc.CORS = &cors
		}
		if cfg.Server.RateLimit > 0 {
			rl := middleware.DefaultRateLimitConfig()
			rl.RequestsPerSecond = cfg.Server.RateLimit
			rl.BurstSize = cfg.Server.RateBurst
			limiter := middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.IdleTimeout)
			rc.RateLimiter = limiter
			rc.RateLimit = rl
			stop = limiter.Stop
		}
	}
	return httpapi.NewRouter(rc), stop
}

//Personal.AI order the ending
