// Package config loads relay configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all relay configuration.
type Config struct {
	Redis   RedisConfig
	Relay   RelayConfig
	HTTP    HTTPConfig
	Logging LogConfig
}

// RedisConfig holds broker connection configuration.
type RedisConfig struct {
	Addr           string        `envconfig:"RELAY_REDIS_ADDR" default:"127.0.0.1:6379"`
	Password       string        `envconfig:"RELAY_REDIS_PASSWORD"`
	DB             int           `envconfig:"RELAY_REDIS_DB" default:"0"`
	DialTimeout    time.Duration `envconfig:"RELAY_DIAL_TIMEOUT" default:"5s"`
	ConnectRetries int           `envconfig:"RELAY_CONNECT_RETRIES" default:"0"`
	PublishRetries int           `envconfig:"RELAY_PUBLISH_RETRIES" default:"3"`
}

// RelayConfig holds ingestion and dispatch configuration.
type RelayConfig struct {
	Channel       string `envconfig:"RELAY_CHANNEL" default:"chat"`
	Workers       int    `envconfig:"RELAY_WORKERS" default:"0"`
	QueueCapacity int    `envconfig:"RELAY_QUEUE_CAPACITY" default:"0"`
	QueueOverflow string `envconfig:"RELAY_QUEUE_OVERFLOW" default:"block"`
}

// HTTPConfig holds the serve command's HTTP configuration.
type HTTPConfig struct {
	Addr            string        `envconfig:"RELAY_HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"RELAY_SHUTDOWN_TIMEOUT" default:"15s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:           "127.0.0.1:6379",
			DialTimeout:    5 * time.Second,
			PublishRetries: 3,
		},
		Relay: RelayConfig{
			Channel:       "chat",
			QueueOverflow: "block",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the relay cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Redis.Addr == "":
		return fmt.Errorf("invalid config: redis address is empty")
	case c.Relay.Channel == "":
		return fmt.Errorf("invalid config: channel is empty")
	case c.Relay.Workers < 0:
		return fmt.Errorf("invalid config: workers must not be negative, got %d", c.Relay.Workers)
	case c.Relay.QueueCapacity < 0:
		return fmt.Errorf("invalid config: queue capacity must not be negative, got %d", c.Relay.QueueCapacity)
	case c.Redis.ConnectRetries < 0 || c.Redis.PublishRetries < 0:
		return fmt.Errorf("invalid config: retries must not be negative")
	}
	switch c.Relay.QueueOverflow {
	case "block", "drop":
	default:
		return fmt.Errorf("invalid config: queue overflow must be block or drop, got %q", c.Relay.QueueOverflow)
	}
	return nil
}
