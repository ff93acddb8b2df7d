// Worker entry point for KeyQTO.  It consumes queued takeoff requests and
// serves probes and metrics on a separate port.
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
	"github.com/turtacn/KeyQTO/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/KeyQTO/internal/interfaces/http"
	"github.com/turtacn/KeyQTO/internal/interfaces/worker"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	workers := flag.Int("workers", 1, "number of consumers in the group")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and metrics")
	flag.Parse()

	if err := run(*configPath, *workers, *healthPort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, workers, healthPort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeValidation, "worker requires kafka.enabled")
	}
	if workers < 1 {
		workers = 1
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("starting KeyQTO worker",
		logging.String("version", version),
		logging.Int("workers", workers),
		logging.String("topic", cfg.Kafka.RequestedTopic))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build takeoff pipeline", logging.Err(err))
		return err
	}
	defer c.Close()
	c.ReportDBStats(ctx, 0)

	handler := worker.NewTakeoffHandler(c.Takeoffs, logger, worker.WithMetrics(c.Metrics))
	consumers := make([]*kafka.Consumer, 0, workers)
	defer func() {
		for _, cons := range consumers {
			if err := cons.Close(); err != nil {
				logger.Warn("kafka consumer close failed", logging.Err(err))
			}
		}
	}()
	for i := 0; i < workers; i++ {
		cons, err := kafka.NewConsumer(cfg.Kafka.Consumer(), logger.Named("kafka").With(logging.Int("consumer", i)))
		if err != nil {
			return err
		}
		consumers = append(consumers, cons)
		handler.Register(cons, cfg.Kafka.RequestedTopic)
		if err := cons.Start(ctx); err != nil {
			return err
		}
	}

	router, stopLimiter := c.Router(app.HTTPOptions{Version: version})
	defer stopLimiter()
	probeCfg := cfg.Server
	probeCfg.Port = healthPort
	srv := httpserver.NewServer(probeCfg, router, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("worker started", logging.Int("consumers", len(consumers)))
	select {
	case err = <-errCh:
		if err != nil {
			logger.Error("health server error", logging.Err(err))
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	if stopErr := srv.Stop(context.Background()); stopErr != nil {
		logger.Error("health server shutdown error", logging.Err(stopErr))
	}
	logger.Info("KeyQTO worker stopping")
	return err
}
