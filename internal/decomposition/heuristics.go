// Package decomposition drives the expansion of an over-complex task into
// child tasks via keyword heuristics, regex-matched rules, and named
// templates.
package decomposition

import (
	"regexp"
	"strings"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

// complexityIndicators weights keywords that correlate with a larger body
// of work when present anywhere in the text.
var complexityIndicators = map[string]float64{
	"must": 1, "should": 2, "could": 3, "would": 4,
	"implement": 2, "create": 2, "build": 3, "develop": 3,
	"design": 4, "architect": 5, "integrate": 4, "deploy": 3,
	"test": 2, "document": 1,
}

var technicalTermPattern = regexp.MustCompile(`(?i)\b(API|database|authentication|encryption|scalability|performance|security|deployment|integration|microservice|container|kubernetes|docker|aws|azure|gcp|cloud|serverless)\b`)

var sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)

// TextAnalysis summarizes the heuristic complexity signals pulled from a
// block of free text (normally a task's title plus description).
type TextAnalysis struct {
	WordCount       int
	SentenceCount   int
	TechnicalTerms  int
	ComplexityScore float64
	EstimatedHours  float64
}

// AnalyzeText computes word/sentence/technical-term counts and a clamped
// [1, 24] hour estimate, 100 words approximating one hour of baseline
// effort before the complexity-indicator and technical-term adjustments.
func AnalyzeText(text string) TextAnalysis {
	if strings.TrimSpace(text) == "" {
		return TextAnalysis{EstimatedHours: 1.0}
	}

	words := strings.Fields(text)
	wordCount := len(words)
	sentenceCount := len(sentenceSplitPattern.Split(text, -1))
	technicalTerms := len(technicalTermPattern.FindAllString(text, -1))

	lower := strings.ToLower(text)
	complexityScore := 1.0
	for indicator, weight := range complexityIndicators {
		if strings.Contains(lower, indicator) {
			complexityScore += weight * 0.1
		}
	}
	complexityScore += float64(technicalTerms) * 0.2

	baseHours := float64(wordCount) / 100
	estimated := baseHours * complexityScore
	if estimated < 1.0 {
		estimated = 1.0
	}
	if estimated > 24.0 {
		estimated = 24.0
	}

	return TextAnalysis{
		WordCount:       wordCount,
		SentenceCount:   sentenceCount,
		TechnicalTerms:  technicalTerms,
		ComplexityScore: complexityScore,
		EstimatedHours:  estimated,
	}
}

// EstimateFromDescription derives a PERT triple, required capabilities, and
// a confidence score from a task's free-text description, matching the
// bucketed optimistic/pessimistic spread per estimated-hours band.
func EstimateFromDescription(description string) task.Estimate {
	if strings.TrimSpace(description) == "" {
		return task.Estimate{
			LikelyHours:          2.0,
			Confidence:           0.3,
			RequiredCapabilities: []agent.Capability{agent.CapCodeGeneration},
			Source:               task.SourceAIAnalysis,
		}
	}

	analysis := AnalyzeText(description)
	hours := analysis.EstimatedHours

	var likely, optimistic, pessimistic float64
	switch {
	case hours < 0.25:
		likely, optimistic, pessimistic = 0.25, 0.1, 0.5
	case hours < 1.0:
		likely, optimistic, pessimistic = hours, hours*0.5, hours*2.0
	case hours < 4.0:
		likely, optimistic, pessimistic = hours, hours*0.7, hours*1.5
	case hours < 8.0:
		likely, optimistic, pessimistic = hours, hours*0.8, hours*1.3
	default:
		likely, optimistic, pessimistic = 8.0, 6.0, 12.0
	}

	confidence := 0.3 + float64(analysis.WordCount)/500
	if confidence > 0.8 {
		confidence = 0.8
	}

	return task.Estimate{
		OptimisticHours:      optimistic,
		LikelyHours:          likely,
		PessimisticHours:     pessimistic,
		EstimatedTokens:      int64(analysis.WordCount * 2),
		RequiredCapabilities: InferCapabilities(description),
		Confidence:           confidence,
		Source:               task.SourceAIAnalysis,
	}
}

// capabilityKeywords maps a lowercase substring to the capability it
// implies when present in a task's title/description.
var capabilityKeywords = []struct {
	keyword string
	cap     agent.Capability
}{
	{"design", agent.CapSystemDesign},
	{"architecture", agent.CapArchitecturePlanning},
	{"plan", agent.CapArchitecturePlanning},
	{"requirement", agent.CapRequirementsAnalysis},
	{"analyze", agent.CapRequirementsAnalysis},
	{"break down", agent.CapTaskDecomposition},
	{"decompose", agent.CapTaskDecomposition},
	{"implement", agent.CapCodeGeneration},
	{"create", agent.CapCodeGeneration},
	{"build", agent.CapCodeGeneration},
	{"develop", agent.CapCodeGeneration},
	{"write", agent.CapCodeGeneration},
	{"code", agent.CapCodeGeneration},
	{"test", agent.CapTestGeneration},
	{"document", agent.CapDocumentation},
	{"refactor", agent.CapRefactoring},
	{"review", agent.CapCodeReview},
	{"audit", agent.CapSecurityAudit},
	{"security", agent.CapSecurityAudit},
	{"performance", agent.CapPerformanceAnalysis},
	{"compliance", agent.CapComplianceCheck},
	{"debug", agent.CapDebugging},
	{"fix", agent.CapDebugging},
	{"troubleshoot", agent.CapTroubleshooting},
	{"diagnose", agent.CapRootCauseAnalysis},
	{"optimize", agent.CapOptimization},
	{"improve", agent.CapOptimization},
	{"deploy", agent.CapDeployment},
	{"configure", agent.CapConfiguration},
	{"monitor", agent.CapMonitoring},
	{"scale", agent.CapScaling},
	{"integrate", agent.CapDeployment},
}

// InferCapabilities returns the distinct set of capabilities implied by
// keywords present in text, defaulting to code generation if none match.
func InferCapabilities(text string) []agent.Capability {
	lower := strings.ToLower(text)
	seen := map[agent.Capability]bool{}
	var out []agent.Capability
	for _, entry := range capabilityKeywords {
		if strings.Contains(lower, entry.keyword) && !seen[entry.cap] {
			seen[entry.cap] = true
			out = append(out, entry.cap)
		}
	}
	if len(out) == 0 {
		return []agent.Capability{agent.CapCodeGeneration}
	}
	return out
}
