package config

import (
	"time"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/infrastructure/llm"
	"github.com/turtacn/KeyQTO/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KeyQTO/internal/infrastructure/storage/minio"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
)

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultPriceTable = "configs/prices.yaml"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "keyqto-worker"

	DefaultMetricsNamespace = "keyqto"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills every zero-value field in cfg.  Values already set are
// left unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 16 << 20
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 20
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Recognition / deduction ───────────────────────────────────────────────
	rec := recognizer.DefaultConfig()
	if cfg.Recognition.Concurrency == 0 {
		cfg.Recognition.Concurrency = rec.Concurrency
	}
	if cfg.Recognition.VerifyBelow == 0 {
		cfg.Recognition.VerifyBelow = rec.VerifyBelow
	}
	if cfg.Recognition.ValidThreshold == 0 {
		cfg.Recognition.ValidThreshold = rec.ValidThreshold
	}
	if cfg.Recognition.VerifyTimeout == 0 {
		cfg.Recognition.VerifyTimeout = rec.VerifyTimeout
	}

	ded := takeoff.DefaultDeductionConfig()
	if cfg.Deduction.Tolerance == 0 {
		cfg.Deduction.Tolerance = ded.Tolerance
	}
	if cfg.Deduction.MinColumnSection == 0 {
		cfg.Deduction.MinColumnSection = ded.MinColumnSection
	}
	if cfg.Deduction.MinOpeningArea == 0 {
		cfg.Deduction.MinOpeningArea = ded.MinOpeningArea
	}
	if cfg.Deduction.CellSize == 0 {
		cfg.Deduction.CellSize = ded.CellSize
	}

	// ── Pricing ───────────────────────────────────────────────────────────────
	if cfg.Pricing.TablePath == "" {
		cfg.Pricing.TablePath = DefaultPriceTable
	}
	if cfg.Pricing.Debounce == 0 {
		cfg.Pricing.Debounce = 200 * time.Millisecond
	}

	// ── Infrastructure ────────────────────────────────────────────────────────
	llm.ApplyDefaults(&cfg.Verification)
	redis.ApplyDefaults(&cfg.Redis)
	postgres.ApplyDefaults(&cfg.Database)
	minio.ApplyDefaults(&cfg.MinIO)

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.RequestedTopic == "" {
		cfg.Kafka.RequestedTopic = kafka.TopicTakeoffRequested
	}
	if cfg.Kafka.CompletedTopic == "" {
		cfg.Kafka.CompletedTopic = kafka.TopicTakeoffCompleted
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = kafka.TopicDeadLetterTakeoff
	}
	if cfg.Kafka.HandlerRetries == 0 {
		cfg.Kafka.HandlerRetries = 2
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = 3
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

//Personal.AI order the ending
