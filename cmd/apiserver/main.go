// API server entry point for KeyQTO.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/KeyQTO/internal/app"
	"github.com/turtacn/KeyQTO/internal/config"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/KeyQTO/internal/interfaces/http"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *httpPort); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("starting KeyQTO API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build takeoff pipeline", logging.Err(err))
		return err
	}
	defer c.Close()
	c.ReportDBStats(ctx, 0)

	router, stopLimiter := c.Router(app.HTTPOptions{Version: version, API: true})
	defer stopLimiter()

	srv := httpserver.NewServer(cfg.Server, router, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", logging.Err(err))
		}
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
		return err
	}
	logger.Info("API server stopped")
	return nil
}

//Personal.AI order the ending
