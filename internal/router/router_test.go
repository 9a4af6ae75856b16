package router

import (
	"testing"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
)

type fakeIndex struct {
	agents []*agent.RegisteredAgent
}

func (f *fakeIndex) FindByCapabilities(caps []agent.Capability, matchAll bool) []*agent.RegisteredAgent {
	var out []*agent.RegisteredAgent
	for _, a := range f.agents {
		if matchAll && a.HasAllCapabilities(caps) {
			out = append(out, a)
		} else if !matchAll && a.HasAnyCapability(caps) {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeIndex) FindAvailable() []*agent.RegisteredAgent {
	var out []*agent.RegisteredAgent
	for _, a := range f.agents {
		if a.IsAvailable() {
			out = append(out, a)
		}
	}
	return out
}

func newScoredAgent(t *testing.T, name string, tier agent.Tier, load agent.LoadLevel, caps []agent.Capability) *agent.RegisteredAgent {
	t.Helper()
	a, err := agent.New("tenant-1", name, agent.TypeImplementer, caps, 5)
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	a.Tier = tier
	a.Load = load
	return a
}

func TestRoute_PicksHighestScoringAgentAndFiltersDegraded(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	a := newScoredAgent(t, "elite-agent", agent.TierElite, agent.LoadIdle, caps)
	b := newScoredAgent(t, "competent-agent", agent.TierCompetent, agent.LoadOptimal, caps)
	c := newScoredAgent(t, "degraded-agent", agent.TierDegraded, agent.LoadIdle, caps)

	idx := &fakeIndex{agents: []*agent.RegisteredAgent{a, b, c}}
	rt := New(idx)

	decision, err := rt.Route(Request{RequiredCapabilities: caps})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.Winner.ID != a.ID {
		t.Fatalf("Winner = %s, want %s", decision.Winner.Name, a.Name)
	}
	if len(decision.Alternatives) != 1 || decision.Alternatives[0].ID != b.ID {
		t.Fatalf("Alternatives = %v, want [%s]", decision.Alternatives, b.Name)
	}
}

func TestRoute_EliteIdleFullMatchScoresApproximatelyOne(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	a := newScoredAgent(t, "elite-agent", agent.TierElite, agent.LoadIdle, caps)

	score := Score(a, Request{RequiredCapabilities: caps})
	if score < 0.999 || score > 1.001 {
		t.Fatalf("Score() = %v, want ~1.0", score)
	}
}

func TestRoute_NoSurvivingCandidateReturnsNoAgentAvailable(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	degraded := newScoredAgent(t, "degraded-agent", agent.TierDegraded, agent.LoadIdle, caps)

	idx := &fakeIndex{agents: []*agent.RegisteredAgent{degraded}}
	rt := New(idx)

	_, err := rt.Route(Request{RequiredCapabilities: caps})
	if err == nil {
		t.Fatal("Route() error = nil, want NoAgentAvailable")
	}
}

func TestRoute_MinTierExcludesBelowFloor(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	trainee := newScoredAgent(t, "trainee-agent", agent.TierTrainee, agent.LoadIdle, caps)

	idx := &fakeIndex{agents: []*agent.RegisteredAgent{trainee}}
	rt := New(idx)

	_, err := rt.Route(Request{RequiredCapabilities: caps, MinTier: agent.TierCompetent})
	if err == nil {
		t.Fatal("Route() error = nil, want NoAgentAvailable (trainee below competent floor)")
	}
}

func TestRoute_PreferredIDBonusCanFlipRanking(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	a := newScoredAgent(t, "competent-a", agent.TierCompetent, agent.LoadIdle, caps)
	b := newScoredAgent(t, "competent-b", agent.TierCompetent, agent.LoadIdle, caps)

	idx := &fakeIndex{agents: []*agent.RegisteredAgent{a, b}}
	rt := New(idx)

	decision, err := rt.Route(Request{RequiredCapabilities: caps, PreferredIDs: []string{b.ID}})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.Winner.ID != b.ID {
		t.Fatalf("Winner = %s, want preferred agent %s", decision.Winner.Name, b.Name)
	}
}

func TestRebalance_IdentifiesOverloadedAgentsAndMeanUtilization(t *testing.T) {
	caps := []agent.Capability{agent.CapCodeGeneration}
	full := newScoredAgent(t, "full-agent", agent.TierCompetent, agent.LoadOverloaded, caps)
	full.CurrentTasks = full.MaxConcurrentTasks

	idle := newScoredAgent(t, "idle-agent", agent.TierCompetent, agent.LoadIdle, caps)

	idx := &fakeIndex{agents: []*agent.RegisteredAgent{full, idle}}
	rt := New(idx)

	report := rt.Rebalance([]*agent.RegisteredAgent{full, idle})
	if len(report.Overloaded) != 1 || report.Overloaded[0].ID != full.ID {
		t.Fatalf("Overloaded = %v, want [%s]", report.Overloaded, full.Name)
	}
	if report.MeanUtilization <= 0 || report.MeanUtilization >= 1 {
		t.Fatalf("MeanUtilization = %v, want strictly between 0 and 1", report.MeanUtilization)
	}
}
