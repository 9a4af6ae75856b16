package decomposition

import (
	"testing"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

func newDecompositionParent(t *testing.T, title string, estimate task.Estimate) *task.Task {
	t.Helper()
	tk, err := task.New("tenant-1", "session-1", title, "a parent task needing expansion", task.PriorityMedium, estimate)
	if err != nil {
		t.Fatalf("task.New() error = %v", err)
	}
	return tk
}

func TestTemplate_AppliesGatesOnComplexityThreshold(t *testing.T) {
	tmpl := DefaultTemplates()["web_service_implementation"]

	trivial := newDecompositionParent(t, "implement small fix", task.Estimate{OptimisticHours: 0.1, LikelyHours: 0.1, PessimisticHours: 0.1})
	if tmpl.Applies(trivial) {
		t.Fatal("Applies() = true for a trivial task, want false")
	}

	complex := newDecompositionParent(t, "implement web service", task.Estimate{OptimisticHours: 8, LikelyHours: 10, PessimisticHours: 14})
	if !tmpl.Applies(complex) {
		t.Fatal("Applies() = false for a complex task, want true")
	}
}

func TestTemplate_ExpandChainsPhasesSequentially(t *testing.T) {
	tmpl := DefaultTemplates()["refactoring_task"]
	parent := newDecompositionParent(t, "implement refactor of billing module", task.Estimate{OptimisticHours: 4, LikelyHours: 5, PessimisticHours: 8})

	children, err := tmpl.Expand(parent)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(children) != len(tmpl.Phases) {
		t.Fatalf("len(children) = %d, want %d", len(children), len(tmpl.Phases))
	}
	if len(parent.ChildTaskIDs) != len(children) {
		t.Fatalf("parent.ChildTaskIDs len = %d, want %d", len(parent.ChildTaskIDs), len(children))
	}
	for i := 1; i < len(children); i++ {
		deps := children[i].Dependencies
		if len(deps) != 1 || deps[0].TaskID != children[i-1].ID || deps[0].Type != task.DependencyFinishToStart {
			t.Fatalf("children[%d].Dependencies = %v, want finish-to-start on children[%d]", i, deps, i-1)
		}
	}
	if len(children[0].Dependencies) != 0 {
		t.Fatalf("children[0].Dependencies = %v, want none", children[0].Dependencies)
	}
}
