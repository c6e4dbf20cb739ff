// Package config loads runtime configuration from environment variables
// with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Logging   LoggingConfig
}

// ServerConfig points the client at its session endpoint and the devserver
// binary at its listen address.
type ServerConfig struct {
	WSURL   string // websocket endpoint for the client
	BaseURL string // REST base for the collaborator services
	Addr    string // listen address for the devserver
}

type TransportConfig struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Tick        time.Duration
}

type LoggingConfig struct {
	Level string
	Env   string // "development" or "production"
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			WSURL:   getEnv("SESSION_WS_URL", "ws://localhost:8080/ws"),
			BaseURL: getEnv("SESSION_API_URL", "http://localhost:8080"),
			Addr:    getEnv("ADDR", ":8080"),
		},
		Transport: TransportConfig{
			BackoffBase: time.Duration(getEnvInt("BACKOFF_BASE_MS", 500)) * time.Millisecond,
			BackoffCap:  time.Duration(getEnvInt("BACKOFF_CAP_MS", 30000)) * time.Millisecond,
			Tick:        time.Duration(getEnvInt("TICK_MS", 250)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("ENV", "development"),
		},
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Logging.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
