package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	clearOrchEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %v, want %v", cfg.Env, EnvDevelopment)
	}
	if cfg.MaxConcurrentSessions != 500 {
		t.Errorf("MaxConcurrentSessions = %v, want 500", cfg.MaxConcurrentSessions)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 10s", cfg.HeartbeatInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearOrchEnv(t)
	os.Setenv("ORCH_MAX_CONCURRENT_SESSIONS", "10")
	os.Setenv("ORCH_HEARTBEAT_INTERVAL", "5s")
	defer os.Unsetenv("ORCH_MAX_CONCURRENT_SESSIONS")
	defer os.Unsetenv("ORCH_HEARTBEAT_INTERVAL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxConcurrentSessions != 10 {
		t.Errorf("MaxConcurrentSessions = %v, want 10", cfg.MaxConcurrentSessions)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 5s", cfg.HeartbeatInterval)
	}
}

func TestValidate_ProductionRequiresSigningKey(t *testing.T) {
	cfg := &Config{
		Env:                   EnvProduction,
		DatabaseURL:           "postgres://db.internal:5432/orch",
		MaxConcurrentSessions: 1,
		MaxSessionDepth:       1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing signing key")
	}
	cfg.EAPSigningKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func clearOrchEnv(t *testing.T) {
	t.Helper()
	for _, k := range os.Environ() {
		if len(k) > 5 && (k[:5] == "ORCH_" || k[:3] == "DB_") {
			name := k
			if i := indexByte(k, '='); i >= 0 {
				name = k[:i]
			}
			os.Unsetenv(name)
		}
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
