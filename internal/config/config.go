// Package config loads and validates parser configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the storage, frontier, dedup, and quarantine sections.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendPubSub   = "pubsub"
	BackendRedis    = "redis"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Queues     QueueConfig      `mapstructure:"queues"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	Frontier   FrontierConfig   `mapstructure:"frontier"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// QueueConfig sizes the two page queues.
type QueueConfig struct {
	ProfileCapacity int `mapstructure:"profile_capacity"`
	FollowCapacity  int `mapstructure:"follow_capacity"`
}

// SupervisorConfig controls how often worker health is polled.
type SupervisorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PipelineConfig tunes the page handlers.
type PipelineConfig struct {
	ContentCacheSize int `mapstructure:"content_cache_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// StorageConfig selects the user sink.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// FrontierConfig selects where discovered tokens go.
type FrontierConfig struct {
	Backend string `mapstructure:"backend"`
}

// PubSubConfig holds the frontier topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DedupConfig selects the dedup filter.
type DedupConfig struct {
	Backend string `mapstructure:"backend"`
}

// RedisConfig holds the Redis connection used by the dedup filter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// QuarantineConfig selects where malformed pages are kept.
type QuarantineConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// Load builds a Config from disk/environment. Environment variables use the
// PARSER_ prefix with dots replaced by underscores, e.g. PARSER_DB_DSN.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("queues.profile_capacity", 300)
	v.SetDefault("queues.follow_capacity", 300)
	v.SetDefault("supervisor.poll_interval", "1s")
	v.SetDefault("pipeline.content_cache_size", 4096)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "users")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("frontier.backend", BackendMemory)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("dedup.backend", BackendMemory)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "socialgraph:tokens")
	v.SetDefault("quarantine.backend", BackendNone)
	v.SetDefault("quarantine.base_dir", "")
	v.SetDefault("quarantine.gcs_bucket", "")
	v.SetDefault("quarantine.prefix", "quarantine")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Queues.ProfileCapacity <= 0 {
		return fmt.Errorf("queues.profile_capacity must be > 0")
	}
	if c.Queues.FollowCapacity <= 0 {
		return fmt.Errorf("queues.follow_capacity must be > 0")
	}
	if c.Supervisor.PollInterval <= 0 {
		return fmt.Errorf("supervisor.poll_interval must be > 0")
	}
	if c.Pipeline.ContentCacheSize < 0 {
		return fmt.Errorf("pipeline.content_cache_size must be >= 0")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}

	switch c.Frontier.Backend {
	case BackendMemory:
	case BackendPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required for the pubsub frontier")
		}
	default:
		return fmt.Errorf("frontier.backend %q is not supported", c.Frontier.Backend)
	}

	switch c.Dedup.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis dedup backend")
		}
	default:
		return fmt.Errorf("dedup.backend %q is not supported", c.Dedup.Backend)
	}

	switch c.Quarantine.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Quarantine.BaseDir == "" {
			return fmt.Errorf("quarantine.base_dir is required for the local quarantine backend")
		}
	case BackendGCS:
		if c.Quarantine.GCSBucket == "" {
			return fmt.Errorf("quarantine.gcs_bucket is required for the gcs quarantine backend")
		}
	default:
		return fmt.Errorf("quarantine.backend %q is not supported", c.Quarantine.Backend)
	}
	return nil
}
