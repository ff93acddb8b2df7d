// Package app assembles the takeoff pipeline and its optional infrastructure
// from configuration.  Every binary builds one Container and closes it on
// exit.
package app

import (
	"context"
	"time"

	"github.com/turtacn/KeyQTO/internal/application/reporting"
	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/config"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/infrastructure/llm"
	"github.com/turtacn/KeyQTO/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyQTO/internal/infrastructure/pricing"
	"github.com/turtacn/KeyQTO/internal/infrastructure/storage/minio"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// HealthChecker reports the state of one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// Container holds the wired pipeline.  Optional parts are nil when their
// configuration section is disabled.
type Container struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.TakeoffMetrics

	Prices     *pricing.PriceBook
	Lookup     pricing.Lookup
	Recognizer *recognizer.Recognizer
	Engine     *takeoff.Engine
	Takeoffs   takeoff.Service

	Redis    *redis.Client
	Database *postgres.Connection
	Exporter *minio.ReportExporter
	Producer *kafka.Producer
	Requests *kafka.RequestPublisher

	watcher  *pricing.Watcher
	checkers []HealthChecker
	closers  []func() error
}

// New builds a Container from a defaulted, validated configuration.  The
// price table watcher, when enabled, runs until ctx is done or Close is
// called.  On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *Container, err error) {
	if cfg == nil {
		return nil, errors.InvalidParam("config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.Collector, err = prometheus.NewMetricsCollector(cfg.Metrics, logger); err != nil {
		return nil, err
	}
	c.Metrics = prometheus.NewTakeoffMetrics(c.Collector)

	if cfg.Redis.Enabled {
		if c.Redis, err = redis.NewClient(&cfg.Redis, logger.Named("redis")); err != nil {
			return nil, err
		}
		c.closers = append(c.closers, c.Redis.Close)
		c.checkers = append(c.checkers, checkFunc("redis", c.Redis.Ping))
	}

	if err = c.buildPricing(ctx); err != nil {
		return nil, err
	}

	verifier, err := c.buildVerifier()
	if err != nil {
		return nil, err
	}

	opts := []recognizer.Option{
		recognizer.WithPriceLookup(c.Lookup),
		recognizer.WithMetrics(c.Metrics),
	}
	if verifier != nil {
		opts = append(opts, recognizer.WithVerifier(verifier))
	}
	if c.Recognizer, err = recognizer.New(cfg.Recognition.Recognizer(), logger.Named("recognizer"), opts...); err != nil {
		return nil, err
	}
	c.Engine = takeoff.NewEngine(cfg.Deduction.Engine(), logger.Named("deduction"), c.Metrics)

	svcOpts, err := c.buildSinks(ctx)
	if err != nil {
		return nil, err
	}
	svcOpts = append(svcOpts, takeoff.WithRunMetrics(c.Metrics))
	c.Takeoffs = takeoff.NewService(c.Recognizer, c.Engine, logger.Named("takeoff"), svcOpts...)

	logger.Info("takeoff pipeline ready",
		logging.Int("price_items", c.Prices.Len()),
		logging.Bool("verification", verifier != nil),
		logging.Bool("persistence", c.Database != nil),
		logging.Bool("export", c.Exporter != nil),
		logging.Bool("events", c.Producer != nil))
	return c, nil
}

func (c *Container) buildPricing(ctx context.Context) error {
	cfg := c.Config
	book, err := pricing.LoadFile(cfg.Pricing.TablePath)
	if err != nil {
		c.Metrics.RecordPriceReload(0, err)
		return err
	}
	c.Metrics.RecordPriceReload(book.Len(), nil)
	c.Prices = book
	c.Lookup = book

	hooks := []pricing.WatcherOption{
		pricing.WithDebounce(cfg.Pricing.Debounce),
		pricing.WithReloadHook(func(_ context.Context, items int) { c.Metrics.RecordPriceReload(items, nil) }),
	}
	if cfg.Pricing.Cache {
		if c.Redis == nil {
			return errors.New(errors.ErrCodeValidation, "price cache requires redis")
		}
		cache := redis.NewRedisCache(c.Redis, c.Logger.Named("cache"))
		cached := pricing.NewCachedLookup(book, cache, cfg.Redis.PriceTTL, c.Logger)
		cached.SetMetrics(c.Metrics)
		c.Lookup = cached
		hooks = append(hooks, pricing.WithReloadHook(cached.Invalidate))
	}

	if cfg.Pricing.Watch {
		c.watcher = pricing.NewWatcher(book, cfg.Pricing.TablePath, c.Logger, hooks...)
		if err := c.watcher.Start(ctx); err != nil {
			c.watcher = nil
			return err
		}
		c.closers = append(c.closers, c.watcher.Close)
	}
	return nil
}

func (c *Container) buildVerifier() (recognizer.Verifier, error) {
	cfg := c.Config
	if !cfg.Verification.Enabled {
		return nil, nil
	}
	client, err := llm.NewClient(cfg.Verification, c.Logger.Named("verifier"))
	if err != nil {
		return nil, err
	}
	if !cfg.Verification.CacheVerdicts {
		return client, nil
	}
	if c.Redis == nil {
		return nil, errors.New(errors.ErrCodeValidation, "verdict cache requires redis")
	}
	cache := redis.NewRedisCache(c.Redis, c.Logger.Named("cache"))
	cached := llm.NewCachedVerifier(client, cache, cfg.Redis.VerdictTTL, c.Logger)
	cached.SetMetrics(c.Metrics)
	return cached, nil
}

func (c *Container) buildSinks(ctx context.Context) ([]takeoff.ServiceOption, error) {
	cfg := c.Config
	var opts []takeoff.ServiceOption

	if cfg.Database.Enabled {
		conn, err := postgres.NewConnection(cfg.Database, c.Logger.Named("postgres"))
		if err != nil {
			return nil, err
		}
		c.Database = conn
		c.closers = append(c.closers, conn.Close)
		c.checkers = append(c.checkers, checkFunc("postgres", conn.HealthCheck))
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn, c.Logger).Up(); err != nil {
				return nil, err
			}
		}
		opts = append(opts, takeoff.WithRepository(repositories.NewPostgresTakeoffRepo(conn, c.Logger)))
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewMinIOClient(&cfg.MinIO, c.Logger.Named("minio"))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		c.checkers = append(c.checkers, checkFunc("minio", func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		}))
		if c.Exporter, err = minio.NewReportExporter(client, reporting.NewRenderer(), c.Logger); err != nil {
			return nil, err
		}
		opts = append(opts, takeoff.WithExporter(c.Exporter))
	}

	if cfg.Kafka.Enabled {
		if cfg.Kafka.AutoCreateTopics {
			if err := ensureTopics(ctx, cfg.Kafka, c.Logger); err != nil {
				return nil, err
			}
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Producer(), c.Logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		c.Producer = producer
		c.closers = append(c.closers, producer.Close)
		c.Requests = kafka.NewRequestPublisher(producer, cfg.Kafka.RequestedTopic, c.Logger)
		opts = append(opts, takeoff.WithPublisher(kafka.NewTakeoffPublisher(producer, cfg.Kafka.CompletedTopic, c.Logger)))
	}
	return opts, nil
}

func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()

	topics := kafka.DefaultTopics(cfg.NumPartitions, cfg.ReplicationFactor)
	names := []string{cfg.RequestedTopic, cfg.CompletedTopic, cfg.DeadLetterTopic}
	for i := range topics {
		topics[i].Name = names[i]
	}
	return tm.EnsureTopics(ctx, topics)
}

// ReportDBStats exports connection pool statistics every interval until ctx
// is done.  It is a no-op without a database.
func (c *Container) ReportDBStats(ctx context.Context, interval time.Duration) {
	if c.Database == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Metrics.ObserveDBStats("postgres", c.Database.Stats())
			}
		}
	}()
}

// HealthCheckers returns a checker per connected dependency.
func (c *Container) HealthCheckers() []HealthChecker {
	return append([]HealthChecker(nil), c.checkers...)
}

// Close releases everything the container opened, last opened first.  It
// returns the first error seen.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return first
}

type healthFunc struct {
	name  string
	check func(ctx context.Context) error
}

func checkFunc(name string, check func(ctx context.Context) error) HealthChecker {
	return healthFunc{name: name, check: check}
}

func (h healthFunc) Name() string                    { return h.name }
func (h healthFunc) Check(ctx context.Context) error { return h.check(ctx) }

//Personal.AI order the ending
