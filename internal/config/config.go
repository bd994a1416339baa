package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

// ServerConfig defines server addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Key   string      `mapstructure:"key"` // gateway key the ledger blob lives under
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines tracking engine settings
type TrackingConfig struct {
	TickInterval           string  `mapstructure:"tick_interval"`
	FocusFraction          float64 `mapstructure:"focus_fraction"`
	NotifyThresholdMinutes float64 `mapstructure:"notify_threshold_minutes"`
	RetentionDays          int     `mapstructure:"retention_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCREENTIMED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/screentimed/screentimed.bolt")
	v.SetDefault("storage.key", "screen_time_data")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "60s")
	v.SetDefault("tracking.focus_fraction", 0.3)
	v.SetDefault("tracking.notify_threshold_minutes", 0)
	v.SetDefault("tracking.retention_days", 90)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Storage.Type != "bolt" && cfg.Storage.Type != "redis" {
		return fmt.Errorf("invalid storage type: %s (must be bolt or redis)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "bolt" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required for bolt storage")
	}
	if cfg.Storage.Key == "" {
		return fmt.Errorf("storage key must not be empty")
	}

	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if _, err := time.ParseDuration(cfg.Tracking.TickInterval); err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	if cfg.Tracking.FocusFraction <= 0 || cfg.Tracking.FocusFraction > 1 {
		return fmt.Errorf("focus_fraction must be in (0, 1], got %v", cfg.Tracking.FocusFraction)
	}
	if cfg.Tracking.NotifyThresholdMinutes < 0 {
		return fmt.Errorf("notify_threshold_minutes must not be negative")
	}
	if cfg.Tracking.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}

	return nil
}
