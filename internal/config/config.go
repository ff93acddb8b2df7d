// Package config defines the configuration of the KeyQTO binaries.  No I/O
// lives here, only plain data types and validation.
package config

import (
	"strings"
	"time"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/infrastructure/llm"
	"github.com/turtacn/KeyQTO/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyQTO/internal/infrastructure/storage/minio"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// RecognitionConfig tunes the per-label pipeline.
type RecognitionConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	VerifyBelow     float64       `mapstructure:"verify_below"`
	ValidThreshold  float64       `mapstructure:"valid_threshold"`
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout"`
	ClampConfidence *bool         `mapstructure:"clamp_confidence"`
}

// Recognizer converts the section into recognizer settings.
func (c RecognitionConfig) Recognizer() recognizer.Config {
	out := recognizer.Config{
		Concurrency:     c.Concurrency,
		VerifyBelow:     c.VerifyBelow,
		ValidThreshold:  c.ValidThreshold,
		VerifyTimeout:   c.VerifyTimeout,
		ClampConfidence: true,
	}
	if c.ClampConfidence != nil {
		out.ClampConfidence = *c.ClampConfidence
	}
	return out
}

// DeductionConfig tunes the deduction engine.
type DeductionConfig struct {
	Tolerance        float64 `mapstructure:"tolerance"`
	MinColumnSection float64 `mapstructure:"min_column_section"`
	MinOpeningArea   float64 `mapstructure:"min_opening_area"`
	CellSize         float64 `mapstructure:"cell_size"`
}

// Engine converts the section into engine settings.
func (c DeductionConfig) Engine() takeoff.DeductionConfig {
	return takeoff.DeductionConfig{
		Tolerance:        c.Tolerance,
		MinColumnSection: c.MinColumnSection,
		MinOpeningArea:   c.MinOpeningArea,
		CellSize:         c.CellSize,
	}
}

// PricingConfig locates the unit price table.
type PricingConfig struct {
	TablePath string        `mapstructure:"table_path"`
	Watch     bool          `mapstructure:"watch"`
	Debounce  time.Duration `mapstructure:"debounce"`
	Cache     bool          `mapstructure:"cache"`
}

// KafkaConfig holds broker, topic and worker settings.
type KafkaConfig struct {
	Enabled           bool                 `mapstructure:"enabled"`
	Brokers           []string             `mapstructure:"brokers"`
	GroupID           string               `mapstructure:"group_id"`
	AutoOffsetReset   string               `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	Acks              string               `mapstructure:"acks"`
	Compression       string               `mapstructure:"compression"`
	ProducerRetries   int                  `mapstructure:"producer_retries"`
	BatchSize         int                  `mapstructure:"batch_size"`
	BatchTimeout      time.Duration        `mapstructure:"batch_timeout"`
	RequestedTopic    string               `mapstructure:"requested_topic"`
	CompletedTopic    string               `mapstructure:"completed_topic"`
	DeadLetterTopic   string               `mapstructure:"dead_letter_topic"`
	HandlerRetries    int                  `mapstructure:"handler_retries"`
	RetryBackoff      time.Duration        `mapstructure:"retry_backoff"`
	AutoCreateTopics  bool                 `mapstructure:"auto_create_topics"`
	NumPartitions     int                  `mapstructure:"num_partitions"`
	ReplicationFactor int                  `mapstructure:"replication_factor"`
	Security          kafka.SecurityConfig `mapstructure:"security"`
}

// Producer returns the producer settings of the section.
func (c KafkaConfig) Producer() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:          c.Brokers,
		Acks:             c.Acks,
		MaxRetries:       c.ProducerRetries,
		BatchSize:        c.BatchSize,
		BatchTimeout:     c.BatchTimeout,
		CompressionCodec: c.Compression,
		Security:         c.Security,
	}
}

// Consumer returns the worker consumer settings of the section.
func (c KafkaConfig) Consumer() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:         c.Brokers,
		GroupID:         c.GroupID,
		Topics:          []string{c.RequestedTopic},
		AutoOffsetReset: c.AutoOffsetReset,
		Security:        c.Security,
		Retry: kafka.RetryConfig{
			MaxRetries:      c.HandlerRetries,
			RetryBackoff:    c.RetryBackoff,
			DeadLetterTopic: c.DeadLetterTopic,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.  Infrastructure sections carry an
// Enabled flag; disabled sections are neither validated nor connected.
type Config struct {
	Server       ServerConfig               `mapstructure:"server"`
	Log          logging.LogConfig          `mapstructure:"log"`
	Recognition  RecognitionConfig          `mapstructure:"recognition"`
	Deduction    DeductionConfig            `mapstructure:"deduction"`
	Pricing      PricingConfig              `mapstructure:"pricing"`
	Verification llm.Config                 `mapstructure:"verification"`
	Redis        redis.RedisConfig          `mapstructure:"redis"`
	Database     postgres.PostgresConfig    `mapstructure:"database"`
	Kafka        KafkaConfig                `mapstructure:"kafka"`
	MinIO        minio.MinIOConfig          `mapstructure:"minio"`
	Metrics      prometheus.CollectorConfig `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeValidation, "config: "+format, args...)
}

// Validate checks a defaulted Config and returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimit < 0 {
		return invalid("server.rate_limit must be >= 0")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Recognition.Concurrency < 1 {
		return invalid("recognition.concurrency must be >= 1, got %d", c.Recognition.Concurrency)
	}
	if c.Recognition.VerifyBelow < 0 || c.Recognition.VerifyBelow > 1 {
		return invalid("recognition.verify_below must be within [0, 1]")
	}
	if c.Recognition.ValidThreshold < 0 || c.Recognition.ValidThreshold > 1 {
		return invalid("recognition.valid_threshold must be within [0, 1]")
	}

	if c.Deduction.Tolerance < 0 || c.Deduction.MinColumnSection < 0 || c.Deduction.MinOpeningArea < 0 {
		return invalid("deduction thresholds must be >= 0")
	}

	if c.Pricing.TablePath == "" {
		return invalid("pricing.table_path is required")
	}
	if c.Pricing.Cache && !c.Redis.Enabled {
		return invalid("pricing.cache requires redis.enabled")
	}

	if c.Verification.Enabled {
		if c.Verification.BaseURL == "" {
			return invalid("verification.base_url is required when verification is enabled")
		}
		if c.Verification.RequestsPerSecond <= 0 {
			return invalid("verification.requests_per_second must be > 0")
		}
		if c.Verification.CacheVerdicts && !c.Redis.Enabled {
			return invalid("verification.cache_verdicts requires redis.enabled")
		}
	}

	if c.Redis.Enabled {
		switch c.Redis.Mode {
		case redis.ModeStandalone:
			if c.Redis.Addr == "" {
				return invalid("redis.addr is required")
			}
		case redis.ModeSentinel:
			if c.Redis.MasterName == "" || len(c.Redis.SentinelAddrs) == 0 {
				return invalid("redis sentinel mode requires master_name and sentinel_addrs")
			}
		case redis.ModeCluster:
			if len(c.Redis.ClusterAddrs) == 0 {
				return invalid("redis cluster mode requires cluster_addrs")
			}
		default:
			return invalid("redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
		}
		if c.Redis.DB < 0 {
			return invalid("redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return invalid("database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return invalid("database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.Username == "" {
			return invalid("database.username is required")
		}
		if c.Database.MaxOpenConns < 1 {
			return invalid("database.max_open_conns must be >= 1")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return invalid("kafka.group_id is required")
		}
		switch c.Kafka.AutoOffsetReset {
		case "earliest", "latest":
		default:
			return invalid("kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
		}
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return invalid("minio.endpoint is required")
		}
		if c.MinIO.Bucket == "" {
			return invalid("minio.bucket is required")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics.namespace is required")
	}
	return nil
}

//Personal.AI order the ending
