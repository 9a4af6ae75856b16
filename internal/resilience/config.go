package resilience

import (
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

// AgentCircuitBreakerConfig describes breaker tuning for one category of
// agent dispatch (internal agents vs EAP-fronted external agents).
type AgentCircuitBreakerConfig struct {
	MaxFailures    int
	TimeoutSeconds int
	HalfOpenMax    int
	Logger         *logging.Logger
}

// DefaultAgentCBConfig suits most internal/capability-router dispatch: 5
// consecutive failures trips it, 30s cooldown, 3 half-open probes.
func DefaultAgentCBConfig(logger *logging.Logger) Config {
	return AgentCBConfig(AgentCircuitBreakerConfig{
		MaxFailures:    5,
		TimeoutSeconds: 30,
		HalfOpenMax:    3,
		Logger:         logger,
	})
}

// StrictEAPConfig suits External Agent Protocol endpoints, which fail over
// a public network and should trip faster and cool down longer.
func StrictEAPConfig(logger *logging.Logger) Config {
	return AgentCBConfig(AgentCircuitBreakerConfig{
		MaxFailures:    3,
		TimeoutSeconds: 60,
		HalfOpenMax:    1,
		Logger:         logger,
	})
}

// AgentCBConfig builds a Config from an AgentCircuitBreakerConfig, applying
// defaults for any zero fields and wiring state-change logging if a logger
// is supplied.
func AgentCBConfig(cfg AgentCircuitBreakerConfig) Config {
	cbConfig := Config{
		MaxFailures: cfg.MaxFailures,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		HalfOpenMax: cfg.HalfOpenMax,
	}

	if cbConfig.MaxFailures <= 0 {
		cbConfig.MaxFailures = 5
	}
	if cbConfig.Timeout <= 0 {
		cbConfig.Timeout = 30 * time.Second
	}
	if cbConfig.HalfOpenMax <= 0 {
		cbConfig.HalfOpenMax = 3
	}

	if cfg.Logger != nil {
		logger := cfg.Logger
		cbConfig.OnStateChange = func(from, to State) {
			logger.WithFields(map[string]interface{}{
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		}
	}

	return cbConfig
}
