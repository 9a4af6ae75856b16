package decomposition

import (
	"strings"
	"testing"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
)

func TestAnalyzeText_EmptyTextReturnsOneHourFloor(t *testing.T) {
	analysis := AnalyzeText("   ")
	if analysis.EstimatedHours != 1.0 {
		t.Fatalf("EstimatedHours = %v, want 1.0", analysis.EstimatedHours)
	}
}

func TestAnalyzeText_ClampsUpperBoundAtTwentyFourHours(t *testing.T) {
	words := make([]string, 3000)
	for i := range words {
		words[i] = "implement"
	}
	text := strings.Join(words, " ") + " architect integrate deploy kubernetes security"
	analysis := AnalyzeText(text)
	if analysis.EstimatedHours != 24.0 {
		t.Fatalf("EstimatedHours = %v, want 24.0", analysis.EstimatedHours)
	}
}

func TestAnalyzeText_CountsTechnicalTerms(t *testing.T) {
	analysis := AnalyzeText("Design the API with authentication and deploy to AWS using Docker")
	if analysis.TechnicalTerms == 0 {
		t.Fatal("TechnicalTerms = 0, want > 0")
	}
}

func TestEstimateFromDescription_EmptyDescriptionUsesDefault(t *testing.T) {
	estimate := EstimateFromDescription("")
	if estimate.LikelyHours != 2.0 {
		t.Fatalf("LikelyHours = %v, want 2.0", estimate.LikelyHours)
	}
	if estimate.Confidence != 0.3 {
		t.Fatalf("Confidence = %v, want 0.3", estimate.Confidence)
	}
	if len(estimate.RequiredCapabilities) != 1 || estimate.RequiredCapabilities[0] != agent.CapCodeGeneration {
		t.Fatalf("RequiredCapabilities = %v, want [CapCodeGeneration]", estimate.RequiredCapabilities)
	}
}

func TestEstimateFromDescription_ConfidenceCapsAtPointEight(t *testing.T) {
	words := make([]string, 5000)
	for i := range words {
		words[i] = "word"
	}
	estimate := EstimateFromDescription(strings.Join(words, " "))
	if estimate.Confidence != 0.8 {
		t.Fatalf("Confidence = %v, want 0.8", estimate.Confidence)
	}
}

func TestInferCapabilities_DefaultsToCodeGenerationWhenNoKeywordMatches(t *testing.T) {
	caps := InferCapabilities("xyzzy plugh")
	if len(caps) != 1 || caps[0] != agent.CapCodeGeneration {
		t.Fatalf("InferCapabilities() = %v, want [CapCodeGeneration]", caps)
	}
}

func TestInferCapabilities_DeduplicatesAndPreservesFirstMatchOrder(t *testing.T) {
	caps := InferCapabilities("design the design and redesign the design again")
	count := 0
	for _, c := range caps {
		if c == agent.CapSystemDesign {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("CapSystemDesign appears %d times, want 1", count)
	}
}

func TestInferCapabilities_MatchesMultipleDistinctKeywords(t *testing.T) {
	caps := InferCapabilities("review the security audit and test the implementation")
	want := map[agent.Capability]bool{
		agent.CapCodeReview:     true,
		agent.CapSecurityAudit:  true,
		agent.CapTestGeneration: true,
	}
	for w := range want {
		found := false
		for _, c := range caps {
			if c == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("InferCapabilities() = %v, missing %v", caps, w)
		}
	}
}
