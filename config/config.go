package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/vultisig/multisigner/internal/types"
)

type Config struct {
	Server struct {
		Host      string `mapstructure:"host"`
		Port      int64  `mapstructure:"port"`
		LogLevel  string `mapstructure:"log_level"`
		JWTSecret string `mapstructure:"jwt_secret"`
		// AdminIdentities may call the /admin routes; empty disables them.
		AdminIdentities []string `mapstructure:"admin_identities"`
	} `mapstructure:"server"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Cache struct {
		// Kind is one of redis, lru or none. lru is process local and only
		// allowed with the in-memory database; left empty it resolves to lru
		// without a DSN and none with one.
		Kind string        `mapstructure:"kind"`
		Size int           `mapstructure:"size"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Datadog struct {
		Host string `mapstructure:"host"`
		Port string `mapstructure:"port"`
	} `mapstructure:"datadog"`

	Coordinator struct {
		DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
		// SweepSchedule is a cron expression such as "@every 1m" or "*/5 * * * *".
		SweepSchedule      string        `mapstructure:"sweep_schedule"`
		ExecutionLease     time.Duration `mapstructure:"execution_lease"`
		MaxConflictRetries uint          `mapstructure:"max_conflict_retries"`
		ExecuteAtThreshold bool          `mapstructure:"execute_at_threshold"`
	} `mapstructure:"coordinator"`

	Chain struct {
		RestURL string        `mapstructure:"rest_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"chain"`

	Notifier struct {
		WebhookURL string        `mapstructure:"webhook_url"`
		MaxRetries uint          `mapstructure:"max_retries"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notifier"`

	BlockStorage struct {
		Host      string `mapstructure:"host"`
		Region    string `mapstructure:"region"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"block_storage"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.admin_identities", []string{})

	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.user", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.kind", "")
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("datadog.host", "localhost")
	v.SetDefault("datadog.port", "8125")

	v.SetDefault("coordinator.default_timeout", "24h")
	v.SetDefault("coordinator.sweep_schedule", "@every 1m")
	v.SetDefault("coordinator.execution_lease", "2m")
	v.SetDefault("coordinator.max_conflict_retries", 10)
	v.SetDefault("coordinator.execute_at_threshold", false)

	v.SetDefault("chain.rest_url", "")
	v.SetDefault("chain.timeout", "15s")

	v.SetDefault("notifier.webhook_url", "")
	v.SetDefault("notifier.max_retries", 5)
	v.SetDefault("notifier.timeout", "10s")

	v.SetDefault("block_storage.host", "")
	v.SetDefault("block_storage.region", "")
	v.SetDefault("block_storage.access_key", "")
	v.SetDefault("block_storage.secret_key", "")
	v.SetDefault("block_storage.bucket", "")
}

// ReadConfig loads <name>.yaml from the working directory, overlaid by
// MULTISIGNER_ prefixed environment variables (MULTISIGNER_SERVER_PORT and so on).
// A missing file is not an error.
func ReadConfig(name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	v.SetEnvPrefix("MULTISIGNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fail to read config file, err: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, err: %w", err)
	}
	if cfg.Cache.Kind == "" {
		cfg.Cache.Kind = "lru"
		if cfg.Database.DSN != "" {
			cfg.Cache.Kind = "none"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Kind {
	case "redis", "lru", "none":
	default:
		return fmt.Errorf("unknown cache kind %q", c.Cache.Kind)
	}
	// every process sharing the database would serve its own stale copy
	if c.Cache.Kind == "lru" && c.Database.DSN != "" {
		return fmt.Errorf("cache.kind lru is single-node only, use redis or none with database.dsn")
	}
	if c.Coordinator.DefaultTimeout < time.Second {
		return fmt.Errorf("coordinator.default_timeout must be at least 1s")
	}
	if c.Coordinator.DefaultTimeout > time.Duration(types.MaxTimeoutSeconds)*time.Second {
		return fmt.Errorf("coordinator.default_timeout must be at most %ds", types.MaxTimeoutSeconds)
	}
	if c.Coordinator.ExecutionLease <= 0 {
		return fmt.Errorf("coordinator.execution_lease must be positive")
	}
	if c.Coordinator.MaxConflictRetries == 0 {
		return fmt.Errorf("coordinator.max_conflict_retries must be positive")
	}
	if _, err := cron.ParseStandard(c.Coordinator.SweepSchedule); err != nil {
		return fmt.Errorf("coordinator.sweep_schedule is invalid: %w", err)
	}
	return nil
}
