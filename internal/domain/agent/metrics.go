package agent

// PerformanceMetrics accumulates an agent's rolling track record: totals,
// moving averages, resource accumulators, and per-capability/technology
// success rates.
type PerformanceMetrics struct {
	TotalTasks            int
	SuccessfulTasks       int
	FailedTasks           int
	PartiallySuccessful   int

	AverageQualityScore      float64
	AverageExecutionSeconds  float64

	TokensAccumulated int64
	CostAccumulatedUSD float64

	CapabilitySuccessRates map[Capability]float64
	TechnologySuccessRates map[string]float64
}

// NewPerformanceMetrics returns a zero-value metrics record.
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		CapabilitySuccessRates: map[Capability]float64{},
		TechnologySuccessRates: map[string]float64{},
	}
}

// SuccessRate is (successful + 0.5*partial) / total, or 0 with no tasks yet.
func (m *PerformanceMetrics) SuccessRate() float64 {
	if m.TotalTasks == 0 {
		return 0
	}
	return (float64(m.SuccessfulTasks) + 0.5*float64(m.PartiallySuccessful)) / float64(m.TotalTasks)
}

// RecordOutcome folds one completed task's outcome into the rolling averages.
func (m *PerformanceMetrics) RecordOutcome(success bool, partial bool, qualityScore float64, executionSeconds float64, tokens int64, costUSD float64) {
	m.TotalTasks++
	switch {
	case partial:
		m.PartiallySuccessful++
	case success:
		m.SuccessfulTasks++
	default:
		m.FailedTasks++
	}

	n := float64(m.TotalTasks)
	m.AverageQualityScore = m.AverageQualityScore + (qualityScore-m.AverageQualityScore)/n
	m.AverageExecutionSeconds = m.AverageExecutionSeconds + (executionSeconds-m.AverageExecutionSeconds)/n

	m.TokensAccumulated += tokens
	m.CostAccumulatedUSD += costUSD
}

// minSampleForTierTransition is the minimum total-task sample size before
// the circuit breaker is willing to move an agent's tier.
const minSampleForTierTransition = 5

// CircuitBreakerTier is a pure function of rolling metrics: below a 0.3
// success rate (with a adequate sample) an agent degrades out of routing
// eligibility; crossing back above 0.5 promotes it to trainee only — not
// directly back to its prior tier (see DESIGN.md open questions).
func CircuitBreakerTier(current Tier, m *PerformanceMetrics) Tier {
	if m.TotalTasks < minSampleForTierTransition {
		return current
	}
	rate := m.SuccessRate()
	if rate < 0.3 {
		return TierDegraded
	}
	if current == TierDegraded && rate > 0.5 {
		return TierTrainee
	}
	return current
}
