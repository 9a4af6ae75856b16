// Package router selects the best available agent for a task's required
// capabilities via weighted scoring, tier/load filtering, and workload
// rebalance reporting. The performance-tier circuit breaker itself is a
// pure function of agent metrics (agent.CircuitBreakerTier); this package
// applies it and filters degraded agents out of candidacy.
package router

import (
	"sort"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
)

const (
	weightTier         = 0.4
	weightCapability   = 0.3
	weightLoad         = 0.2
	weightAvailability = 0.1

	preferredIDBonus   = 0.10
	preferredTypeBonus = 0.05
)

// AgentIndex is the subset of internal/registry.Registry the router reads
// candidates from.
type AgentIndex interface {
	FindByCapabilities(caps []agent.Capability, matchAll bool) []*agent.RegisteredAgent
	FindAvailable() []*agent.RegisteredAgent
}

// Request describes a routing query: the capabilities a task needs plus
// optional preferences that bias, but never gate, candidate selection.
type Request struct {
	RequiredCapabilities []agent.Capability
	PreferredType        agent.Type
	PreferredIDs         []string
	MinTier              agent.Tier
}

// Candidate is one scored routing option.
type Candidate struct {
	Agent *agent.RegisteredAgent
	Score float64
}

// Decision is the router's selection: the winner, up to three runners-up,
// and a human-readable justification.
type Decision struct {
	Winner       *agent.RegisteredAgent
	Alternatives []*agent.RegisteredAgent
	Reason       string
}

// Router scores and selects agents from an AgentIndex.
type Router struct {
	index AgentIndex
}

// New builds a Router over the given agent index.
func New(index AgentIndex) *Router {
	return &Router{index: index}
}

// tierRank orders tiers from worst to best for the MinTier floor check.
var tierRank = map[agent.Tier]int{
	agent.TierDegraded:  0,
	agent.TierTrainee:   1,
	agent.TierCompetent: 2,
	agent.TierAdvanced:  3,
	agent.TierElite:     4,
}

// Route selects the best candidate for req, returning
// apperrors.NoAgentAvailable if no agent survives capability, tier, and
// degraded filtering.
func (r *Router) Route(req Request) (Decision, error) {
	candidates := r.candidates(req)
	if len(candidates) == 0 {
		return Decision{}, apperrors.NoAgentAvailable(capabilityLabel(req.RequiredCapabilities))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	winner := candidates[0]
	alternatives := make([]*agent.RegisteredAgent, 0, 3)
	for _, c := range candidates[1:] {
		if len(alternatives) == 3 {
			break
		}
		alternatives = append(alternatives, c.Agent)
	}

	return Decision{
		Winner:       winner.Agent,
		Alternatives: alternatives,
		Reason:       reasonFor(winner, req),
	}, nil
}

// candidates builds the capability-and-availability-filtered, scored
// candidate set, dropping agents below MinTier and anything degraded.
func (r *Router) candidates(req Request) []Candidate {
	byCapability := r.index.FindByCapabilities(req.RequiredCapabilities, true)
	available := make(map[string]bool, len(byCapability))
	for _, a := range r.index.FindAvailable() {
		available[a.ID] = true
	}

	var out []Candidate
	for _, a := range byCapability {
		if !available[a.ID] {
			continue
		}
		if a.Tier == agent.TierDegraded {
			continue
		}
		if req.MinTier != "" && tierRank[a.Tier] < tierRank[req.MinTier] {
			continue
		}
		out = append(out, Candidate{Agent: a, Score: Score(a, req)})
	}
	return out
}

// Score computes the router's weighted candidate score, including
// preference bonuses, per spec.md §4.5.
func Score(a *agent.RegisteredAgent, req Request) float64 {
	score := weightTier*a.Tier.Score() +
		weightCapability*capabilityMatch(a, req.RequiredCapabilities) +
		weightLoad*a.Load.Score() +
		weightAvailability*availabilityScore(a)

	for _, id := range req.PreferredIDs {
		if id == a.ID {
			score += preferredIDBonus
			break
		}
	}
	if req.PreferredType != "" {
		if agentType, _ := a.Metadata["agent_type"].(string); agentType == string(req.PreferredType) {
			score += preferredTypeBonus
		} else if a.Type == req.PreferredType {
			score += preferredTypeBonus
		}
	}
	return score
}

func capabilityMatch(a *agent.RegisteredAgent, required []agent.Capability) float64 {
	if len(required) == 0 {
		return 1.0
	}
	matched := 0
	for _, c := range required {
		if a.Capabilities[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// availabilityScore is binary: 1.0 if the agent can still accept work, 0
// otherwise. IsAvailable already gates candidacy, so in practice this is
// always 1.0 for anything reaching Score, kept as its own term to mirror
// the spec's four-factor weighting rather than folding it into load.
func availabilityScore(a *agent.RegisteredAgent) float64 {
	if a.IsAvailable() {
		return 1.0
	}
	return 0.0
}

func capabilityLabel(caps []agent.Capability) string {
	if len(caps) == 0 {
		return "unspecified"
	}
	return string(caps[0])
}

func reasonFor(winner Candidate, req Request) string {
	return "selected " + winner.Agent.Name + " (tier=" + string(winner.Agent.Tier) +
		", load=" + string(winner.Agent.Load) + ") as the highest-scoring candidate for " +
		capabilityLabel(req.RequiredCapabilities)
}
