// Package agent models registered workers: their type, capability set,
// performance tier, load level, and rolling performance metrics.
package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Type classifies the kind of specialist an agent is.
type Type string

const (
	TypeArchitect    Type = "architect"
	TypeImplementer  Type = "implementer"
	TypeReviewer     Type = "reviewer"
	TypeDebugger     Type = "debugger"
	TypeIntegrator   Type = "integrator"
	TypeOrchestrator Type = "orchestrator"
	TypeAnalyst      Type = "analyst"
	TypeOptimizer    Type = "optimizer"
)

// Capability is a named skill tag drawn from a closed vocabulary.
type Capability string

const (
	CapRequirementsAnalysis   Capability = "requirements_analysis"
	CapSystemDesign           Capability = "system_design"
	CapArchitecturePlanning   Capability = "architecture_planning"
	CapTaskDecomposition      Capability = "task_decomposition"
	CapCodeGeneration         Capability = "code_generation"
	CapTestGeneration         Capability = "test_generation"
	CapDocumentation          Capability = "documentation"
	CapRefactoring            Capability = "refactoring"
	CapCodeReview             Capability = "code_review"
	CapSecurityAudit          Capability = "security_audit"
	CapPerformanceAnalysis    Capability = "performance_analysis"
	CapComplianceCheck        Capability = "compliance_check"
	CapDebugging              Capability = "debugging"
	CapTroubleshooting        Capability = "troubleshooting"
	CapRootCauseAnalysis      Capability = "root_cause_analysis"
	CapOptimization           Capability = "optimization"
	CapDeployment             Capability = "deployment"
	CapConfiguration          Capability = "configuration"
	CapMonitoring             Capability = "monitoring"
	CapScaling                Capability = "scaling"
	CapWorkflowOrchestration  Capability = "workflow_orchestration"
	CapResourceAllocation     Capability = "resource_allocation"
	CapConflictResolution     Capability = "conflict_resolution"
	CapProgressTracking       Capability = "progress_tracking"
)

// PrimaryCapabilities restricts which capabilities each agent Type may hold
// as a primary (scheduling-eligible) capability; secondary capabilities are
// unconstrained.
var PrimaryCapabilities = map[Type][]Capability{
	TypeArchitect:    {CapRequirementsAnalysis, CapSystemDesign, CapArchitecturePlanning, CapTaskDecomposition},
	TypeImplementer:  {CapCodeGeneration, CapTestGeneration, CapDocumentation, CapRefactoring},
	TypeReviewer:     {CapCodeReview, CapSecurityAudit, CapPerformanceAnalysis, CapComplianceCheck},
	TypeDebugger:     {CapDebugging, CapTroubleshooting, CapRootCauseAnalysis, CapOptimization},
	TypeIntegrator:   {CapDeployment, CapConfiguration, CapMonitoring, CapScaling},
	TypeOrchestrator: {CapWorkflowOrchestration, CapResourceAllocation, CapConflictResolution, CapProgressTracking},
}

// AllowsPrimaryCapability reports whether cap is a valid primary capability
// for agent type t. Types not listed in PrimaryCapabilities (analyst,
// optimizer) place no restriction.
func AllowsPrimaryCapability(t Type, cap Capability) bool {
	allowed, restricted := PrimaryCapabilities[t]
	if !restricted {
		return true
	}
	for _, c := range allowed {
		if c == cap {
			return true
		}
	}
	return false
}

// Tier is a discrete classification of an agent's quality/success track record.
type Tier string

const (
	TierElite     Tier = "elite"
	TierAdvanced  Tier = "advanced"
	TierCompetent Tier = "competent"
	TierTrainee   Tier = "trainee"
	TierDegraded  Tier = "degraded"
)

// Score returns the router's tier weighting factor.
func (t Tier) Score() float64 {
	switch t {
	case TierElite:
		return 1.0
	case TierAdvanced:
		return 0.8
	case TierCompetent:
		return 0.6
	case TierTrainee:
		return 0.4
	case TierDegraded:
		return 0.0
	default:
		return 0.0
	}
}

// LoadLevel is a discrete classification of per-agent utilization.
type LoadLevel string

const (
	LoadIdle       LoadLevel = "idle"
	LoadOptimal    LoadLevel = "optimal"
	LoadHigh       LoadLevel = "high"
	LoadCritical   LoadLevel = "critical"
	LoadOverloaded LoadLevel = "overloaded"
)

// Score returns the router's load weighting factor.
func (l LoadLevel) Score() float64 {
	switch l {
	case LoadIdle:
		return 1.0
	case LoadOptimal:
		return 0.8
	case LoadHigh:
		return 0.5
	case LoadCritical:
		return 0.2
	case LoadOverloaded:
		return 0.0
	default:
		return 0.0
	}
}

// LoadLevelFromUtilization derives a LoadLevel as a pure function of
// current/max concurrent task utilization.
func LoadLevelFromUtilization(current, max int) LoadLevel {
	if max <= 0 {
		return LoadOverloaded
	}
	utilization := float64(current) / float64(max)
	switch {
	case current >= max:
		return LoadOverloaded
	case utilization >= 0.9:
		return LoadCritical
	case utilization >= 0.6:
		return LoadHigh
	case utilization > 0:
		return LoadOptimal
	default:
		return LoadIdle
	}
}

// RegisteredAgent is a runtime registration record held by the registry.
type RegisteredAgent struct {
	ID                 string
	TenantID           string
	Name               string
	Type               Type
	Capabilities       map[Capability]bool
	Tier               Tier
	Load               LoadLevel
	CurrentTasks       int
	MaxConcurrentTasks int
	LastHeartbeat      time.Time
	Metadata           map[string]interface{}
	Metrics            *PerformanceMetrics
}

// New constructs a RegisteredAgent, validating the tenant id, the name
// (see validateName) and maxConcurrentTasks. Capabilities are stored as
// given; they are not checked against the agent type's primary
// capabilities.
func New(tenantID, name string, typ Type, capabilities []Capability, maxConcurrentTasks int) (*RegisteredAgent, error) {
	if tenantID == "" {
		return nil, apperrors.MissingParameter("tenant_id")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if maxConcurrentTasks <= 0 {
		return nil, apperrors.OutOfRange("max_concurrent_tasks", 1, nil)
	}

	capSet := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		capSet[c] = true
	}

	return &RegisteredAgent{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		Name:               name,
		Type:               typ,
		Capabilities:       capSet,
		Tier:               TierCompetent,
		Load:               LoadIdle,
		MaxConcurrentTasks: maxConcurrentTasks,
		LastHeartbeat:      time.Now().UTC(),
		Metadata:           map[string]interface{}{},
		Metrics:            NewPerformanceMetrics(),
	}, nil
}

// ApplyCircuitBreaker folds the agent's current metrics into its tier via
// CircuitBreakerTier, degrading or promoting as the rolling success rate
// crosses the breaker's thresholds.
func (a *RegisteredAgent) ApplyCircuitBreaker() {
	a.Tier = CircuitBreakerTier(a.Tier, a.Metrics)
}

func validateName(name string) error {
	if len(name) == 0 {
		return apperrors.MissingParameter("name")
	}
	if len(name) < 4 {
		return apperrors.InvalidFormat("name", "AGENT-... or a descriptive name")
	}
	return nil
}

// HasAllCapabilities reports whether the agent holds every capability in required.
func (a *RegisteredAgent) HasAllCapabilities(required []Capability) bool {
	for _, c := range required {
		if !a.Capabilities[c] {
			return false
		}
	}
	return true
}

// HasAnyCapability reports whether the agent holds at least one of required.
func (a *RegisteredAgent) HasAnyCapability(required []Capability) bool {
	for _, c := range required {
		if a.Capabilities[c] {
			return true
		}
	}
	return false
}

// IsAvailable reports whether the agent may currently accept new work: not
// degraded, not overloaded, and below its concurrency ceiling.
func (a *RegisteredAgent) IsAvailable() bool {
	return a.Tier != TierDegraded && a.Load != LoadOverloaded && a.CurrentTasks < a.MaxConcurrentTasks
}

// RefreshLoad recomputes Load from current utilization.
func (a *RegisteredAgent) RefreshLoad() {
	a.Load = LoadLevelFromUtilization(a.CurrentTasks, a.MaxConcurrentTasks)
}

// IncrementTaskCount bumps CurrentTasks and refreshes Load.
func (a *RegisteredAgent) IncrementTaskCount() {
	a.CurrentTasks++
	a.RefreshLoad()
}

// DecrementTaskCount decrements CurrentTasks (floored at 0) and refreshes Load.
func (a *RegisteredAgent) DecrementTaskCount() {
	if a.CurrentTasks > 0 {
		a.CurrentTasks--
	}
	a.RefreshLoad()
}

// Heartbeat refreshes LastHeartbeat to now.
func (a *RegisteredAgent) Heartbeat(now time.Time) {
	a.LastHeartbeat = now
}

// IsExpired reports whether the agent's heartbeat has exceeded maxAge.
func (a *RegisteredAgent) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.After(a.LastHeartbeat.Add(maxAge))
}

// IsExternal reports whether this agent is fronted by an HTTP EAP endpoint
// rather than an in-process executor.
func (a *RegisteredAgent) IsExternal() bool {
	v, _ := a.Metadata["is_external"].(bool)
	return v
}

// EndpointURL returns the EAP endpoint, if this agent is external.
func (a *RegisteredAgent) EndpointURL() string {
	v, _ := a.Metadata["endpoint_url"].(string)
	return v
}

// AuthToken returns the EAP auth token, if this agent is external.
func (a *RegisteredAgent) AuthToken() string {
	v, _ := a.Metadata["auth_token"].(string)
	return v
}
