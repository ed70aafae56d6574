package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration for the log search service.
type Config struct {
	Search      SearchConfig     `yaml:"search" mapstructure:"search"`
	OpenSearch  OpenSearchConfig `yaml:"opensearch" mapstructure:"opensearch"`
	Redis       RedisConfig      `yaml:"redis" mapstructure:"redis"`
	NATS        NATSConfig       `yaml:"nats" mapstructure:"nats"`
	Metrics     MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Logging     LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
}

// SearchConfig captures query construction settings.
type SearchConfig struct {
	IndexPrefix     string `yaml:"index_prefix" mapstructure:"index_prefix"`
	TimeZone        string `yaml:"time_zone" mapstructure:"time_zone"`
	DefaultInterval string `yaml:"default_interval" mapstructure:"default_interval"`
	MaxResultSize   int    `yaml:"max_result_size" mapstructure:"max_result_size"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the per-search timeout as a time.Duration.
func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// OpenSearchConfig captures OpenSearch connection settings.
type OpenSearchConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

// RedisConfig captures result cache settings.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	URL        string `yaml:"url" mapstructure:"url"`
	TTLSeconds int    `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
}

// TTL returns the cache entry lifetime as a time.Duration.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// NATSConfig captures NATS message broker connection settings.
type NATSConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	MaxReconnects int    `yaml:"max_reconnects" mapstructure:"max_reconnects"`
	ReconnectWait int    `yaml:"reconnect_wait_seconds" mapstructure:"reconnect_wait_seconds"`
}

// ReconnectWaitDuration returns the reconnect wait as a time.Duration.
func (n NATSConfig) ReconnectWaitDuration() time.Duration {
	return time.Duration(n.ReconnectWait) * time.Second
}

// MetricsConfig captures the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// LoggingConfig captures logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

// Load reads configuration from the provided path and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("search.index_prefix", "api-umbrella-logs")
	v.SetDefault("search.time_zone", "UTC")
	v.SetDefault("search.default_interval", "day")
	v.SetDefault("search.max_result_size", 10000)
	v.SetDefault("search.timeout_seconds", 30)

	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.insecure", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.ttl_seconds", 60)

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1) // Infinite reconnects
	v.SetDefault("nats.reconnect_wait_seconds", 2)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9102")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database_url", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logsearch")
	}

	// Environment variables override
	v.SetEnvPrefix("LOGSEARCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
