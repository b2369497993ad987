package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 0, cfg.Redis.ConnectRetries)
	assert.Equal(t, 3, cfg.Redis.PublishRetries)

	assert.Equal(t, "chat", cfg.Relay.Channel)
	assert.Equal(t, 0, cfg.Relay.Workers)
	assert.Equal(t, 0, cfg.Relay.QueueCapacity)
	assert.Equal(t, "block", cfg.Relay.QueueOverflow)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"RELAY_REDIS_ADDR":       "redis:6380",
		"RELAY_REDIS_PASSWORD":   "secret",
		"RELAY_REDIS_DB":         "2",
		"RELAY_DIAL_TIMEOUT":     "1s",
		"RELAY_CONNECT_RETRIES":  "5",
		"RELAY_PUBLISH_RETRIES":  "0",
		"RELAY_CHANNEL":          "lobby",
		"RELAY_WORKERS":          "3",
		"RELAY_QUEUE_CAPACITY":   "100",
		"RELAY_QUEUE_OVERFLOW":   "drop",
		"RELAY_HTTP_ADDR":        "127.0.0.1:9090",
		"RELAY_SHUTDOWN_TIMEOUT": "2s",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 5, cfg.Redis.ConnectRetries)
	assert.Equal(t, 0, cfg.Redis.PublishRetries)
	assert.Equal(t, "lobby", cfg.Relay.Channel)
	assert.Equal(t, 3, cfg.Relay.Workers)
	assert.Equal(t, 100, cfg.Relay.QueueCapacity)
	assert.Equal(t, "drop", cfg.Relay.QueueOverflow)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"RELAY_WORKERS":        "-1",
		"RELAY_QUEUE_OVERFLOW": "spill",
		"RELAY_DIAL_TIMEOUT":   "soon",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
