package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"`
}

// DatabaseConfig selects the store. Driver is mysql, postgres or memory.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Brokers []string      `mapstructure:"brokers"`
	Topic   TopicConfig   `mapstructure:"topic"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type TopicConfig struct {
	Notification string `mapstructure:"notification"`
	Audit        string `mapstructure:"audit"`
}

// BreakerConfig trips the producer circuit after ConsecutiveFailures
// failed sends and tries again after Timeout.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type BusinessConfig struct {
	MaxRetryCount       int           `mapstructure:"max_retry_count"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	OutboxInterval      time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize     int           `mapstructure:"outbox_batch_size"`
	OutboxRetention     time.Duration `mapstructure:"outbox_retention"`
	PurgeInterval       time.Duration `mapstructure:"purge_interval"`
	IdempotencyLockTTL  time.Duration `mapstructure:"idempotency_lock_ttl"`
	HistoryDefaultLimit int           `mapstructure:"history_default_limit"`
	HistoryMaxLimit     int           `mapstructure:"history_max_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "bankcore")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic.notification", "bank.notifications")
	v.SetDefault("kafka.topic.audit", "bank.audit")
	v.SetDefault("kafka.breaker.consecutive_failures", 5)
	v.SetDefault("kafka.breaker.timeout", 30*time.Second)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "bankcore")
	v.SetDefault("mongo.collection", "audit_logs")

	v.SetDefault("log.level", "info")

	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.retry_base_delay", time.Second)
	v.SetDefault("business.outbox_interval", 500*time.Millisecond)
	v.SetDefault("business.outbox_batch_size", 100)
	v.SetDefault("business.outbox_retention", 7*24*time.Hour)
	v.SetDefault("business.purge_interval", time.Hour)
	v.SetDefault("business.idempotency_lock_ttl", 30*time.Second)
	v.SetDefault("business.history_default_limit", 50)
	v.SetDefault("business.history_max_limit", 200)
}

// Load reads the yaml file at path. Every key can be overridden from the
// environment with the BANKCORE_ prefix, e.g. BANKCORE_DATABASE_HOST.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("bankcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Business.MaxRetryCount <= 0 {
		return fmt.Errorf("business.max_retry_count must be positive")
	}
	// both feed time.NewTicker, which panics on non-positive durations
	if c.Business.OutboxInterval <= 0 {
		return fmt.Errorf("business.outbox_interval must be positive")
	}
	if c.Business.PurgeInterval <= 0 {
		return fmt.Errorf("business.purge_interval must be positive")
	}
	if c.Business.OutboxBatchSize <= 0 {
		return fmt.Errorf("business.outbox_batch_size must be positive")
	}
	if c.Business.RetryBaseDelay <= 0 {
		return fmt.Errorf("business.retry_base_delay must be positive")
	}
	if c.Business.HistoryDefaultLimit <= 0 || c.Business.HistoryDefaultLimit > c.Business.HistoryMaxLimit {
		return fmt.Errorf("business.history_default_limit must be within 1..history_max_limit")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	return nil
}
