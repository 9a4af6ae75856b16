// Package config loads orchestrator configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment identifies the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds every environment-tunable setting the orchestrator kernel reads at boot.
type Config struct {
	Env Environment

	// HTTP surface
	HTTPPort int

	// Database
	DatabaseURL     string
	DatabaseMaxConn int

	// Redis (lock manager, registry heartbeat mirror, notify pub/sub)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel  string
	LogFormat string

	// Session / task kernel tunables
	SessionTimeout        time.Duration
	MaxConcurrentSessions int
	MaxSessionDepth       int
	HeartbeatInterval     time.Duration
	HeartbeatTTL          time.Duration
	CheckpointRetention   time.Duration
	LockDefaultTTL        time.Duration
	LockMaxQueueDepth     int

	// External Agent Protocol
	EAPTimeout    time.Duration
	EAPRetries    int
	EAPSigningKey string

	// Feature flags
	EnableExternalAgents bool
	EnableWebsocketFanout bool
}

// Load reads `config/<env>.env` (if present) and then overlays process
// environment variables, mirroring the teacher's env-file-then-os.Environ
// precedence.
func Load() (*Config, error) {
	env := Environment(getEnv("ORCH_ENV", string(EnvDevelopment)))

	envFile := fmt.Sprintf("config/%s.env", env)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Env: env,

		HTTPPort: getIntEnv("ORCH_HTTP_PORT", 8080),

		DatabaseURL:     getEnv("DB_URL", "postgres://localhost:5432/orchestrator?sslmode=disable"),
		DatabaseMaxConn: getIntEnv("DB_MAX_CONN", 25),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		LogLevel:  getEnv("ORCH_LOG_LEVEL", "info"),
		LogFormat: getEnv("ORCH_LOG_FORMAT", "json"),

		SessionTimeout:        getDurationEnv("ORCH_SESSION_TIMEOUT", 2*time.Hour),
		MaxConcurrentSessions: getIntEnv("ORCH_MAX_CONCURRENT_SESSIONS", 500),
		MaxSessionDepth:       getIntEnv("ORCH_MAX_SESSION_DEPTH", 5),
		HeartbeatInterval:     getDurationEnv("ORCH_HEARTBEAT_INTERVAL", 10*time.Second),
		HeartbeatTTL:          getDurationEnv("ORCH_HEARTBEAT_TTL", 30*time.Second),
		CheckpointRetention:   getDurationEnv("ORCH_CHECKPOINT_RETENTION", 7*24*time.Hour),
		LockDefaultTTL:        getDurationEnv("ORCH_LOCK_DEFAULT_TTL", 30*time.Second),
		LockMaxQueueDepth:     getIntEnv("ORCH_LOCK_MAX_QUEUE_DEPTH", 100),

		EAPTimeout:    getDurationEnv("OPENCODE_EAP_TIMEOUT", 30*time.Second),
		EAPRetries:    getIntEnv("OPENCODE_EAP_RETRIES", 3),
		EAPSigningKey: getEnv("OPENCODE_EAP_SIGNING_KEY", ""),

		EnableExternalAgents:  getBoolEnv("ORCH_ENABLE_EXTERNAL_AGENTS", true),
		EnableWebsocketFanout: getBoolEnv("ORCH_ENABLE_WS_FANOUT", true),
	}

	return cfg, nil
}

// Validate applies production-only strictness checks.
func (c *Config) Validate() error {
	if c.Env == EnvProduction {
		if c.EAPSigningKey == "" {
			return fmt.Errorf("OPENCODE_EAP_SIGNING_KEY is required in production")
		}
		if strings.Contains(c.DatabaseURL, "localhost") {
			return fmt.Errorf("DB_URL must not point at localhost in production")
		}
	}
	if c.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("ORCH_MAX_CONCURRENT_SESSIONS must be positive")
	}
	if c.MaxSessionDepth <= 0 {
		return fmt.Errorf("ORCH_MAX_SESSION_DEPTH must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
