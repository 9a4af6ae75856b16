package router

import "github.com/R3E-Network/agent-orchestrator/internal/domain/agent"

// RebalanceReport identifies agents at or above capacity and the cluster's
// mean utilization, for a service-layer caller to act on. The router only
// reports rebalance intent; actual task reassignment is a service-layer
// concern (spec.md §4.5).
type RebalanceReport struct {
	Overloaded        []*agent.RegisteredAgent
	MeanUtilization   float64
	TotalAgentsSeen   int
}

// Rebalance inspects exactly the agents passed in as all (it does not
// consult the index) and reports which are at or over their concurrency
// ceiling, along with their mean utilization.
func (r *Router) Rebalance(all []*agent.RegisteredAgent) RebalanceReport {
	report := RebalanceReport{TotalAgentsSeen: len(all)}
	if len(all) == 0 {
		return report
	}

	var totalUtilization float64
	for _, a := range all {
		if a.MaxConcurrentTasks > 0 {
			totalUtilization += float64(a.CurrentTasks) / float64(a.MaxConcurrentTasks)
		}
		if a.CurrentTasks >= a.MaxConcurrentTasks {
			report.Overloaded = append(report.Overloaded, a)
		}
	}
	report.MeanUtilization = totalUtilization / float64(len(all))
	return report
}
