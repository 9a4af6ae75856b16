package decomposition

import (
	"strings"
	"testing"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

func testEngine() *Engine {
	return NewEngine(logging.New("decomposition-test", "error", "text"))
}

func TestDecompose_MicroserviceStrategyProducesServicesAndSharedComponents(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement distributed microservice platform",
		task.Estimate{OptimisticHours: 10, LikelyHours: 12, PessimisticHours: 18})

	result, err := e.Decompose(parent, Options{ApplyRules: true, MaxDepth: 0})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	found := false
	for _, s := range result.AppliedStrategies {
		if s == StrategyMicroservice {
			found = true
		}
	}
	if !found {
		t.Fatalf("AppliedStrategies = %v, want StrategyMicroservice", result.AppliedStrategies)
	}

	serviceCount, componentCount := 0, 0
	for _, c := range result.Children {
		switch {
		case strings.Contains(c.Title, "Service"):
			serviceCount++
		case strings.Contains(c.Title, "Component"):
			componentCount++
		}
	}
	if serviceCount != 3 {
		t.Fatalf("serviceCount = %d, want 3", serviceCount)
	}
	if componentCount != 3 {
		t.Fatalf("componentCount = %d, want 3", componentCount)
	}

	for _, c := range result.Children {
		if strings.Contains(c.Title, "Service") && len(c.Dependencies) != 3 {
			t.Fatalf("service task %q has %d dependencies, want 3 (one per shared component)", c.Title, len(c.Dependencies))
		}
	}
}

func TestDecompose_CRUDStrategyAddsTestTaskDependingOnAllOperations(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement CRUD model for user database",
		task.Estimate{OptimisticHours: 3, LikelyHours: 4, PessimisticHours: 6})

	result, err := e.Decompose(parent, Options{ApplyRules: true, MaxDepth: 0})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	var testTask *task.Task
	opCount := 0
	for _, c := range result.Children {
		if strings.Contains(c.Title, "Tests") {
			testTask = c
			continue
		}
		opCount++
	}
	if opCount != 4 {
		t.Fatalf("opCount = %d, want 4", opCount)
	}
	if testTask == nil {
		t.Fatal("no test task produced, want one (include_tests defaults true)")
	}
	if len(testTask.Dependencies) != 4 {
		t.Fatalf("testTask.Dependencies = %v, want 4 (one per CRUD operation)", testTask.Dependencies)
	}
}

func TestDecompose_SecurityStrategyChainsPhasesAndElevatesPriority(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement authentication and security hardening",
		task.Estimate{OptimisticHours: 4, LikelyHours: 6, PessimisticHours: 10})
	parent.Priority = task.PriorityLow

	result, err := e.Decompose(parent, Options{ApplyRules: true, MaxDepth: 0})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	var phaseTasks []*task.Task
	for _, c := range result.Children {
		if strings.Contains(c.Title, "Design") || strings.Contains(c.Title, "Implementation") ||
			strings.Contains(c.Title, "Testing") || strings.Contains(c.Title, "Audit") {
			phaseTasks = append(phaseTasks, c)
		}
	}
	if len(phaseTasks) != 4 {
		t.Fatalf("len(phaseTasks) = %d, want 4", len(phaseTasks))
	}
	for _, p := range phaseTasks {
		if p.Priority != task.PriorityHigh {
			t.Fatalf("phase task %q priority = %v, want PriorityHigh (security_level=high escalates)", p.Title, p.Priority)
		}
	}
}

func TestDecompose_RecursivelyExpandsComplexChildren(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement enterprise web service platform",
		task.Estimate{OptimisticHours: 20, LikelyHours: 30, PessimisticHours: 48})

	result, err := e.Decompose(parent, DefaultOptions())
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(result.Children) == 0 {
		t.Fatal("Decompose() produced no children")
	}
}

func TestDecompose_UIComponentsStrategyDependsOnLayout(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement new frontend interface for dashboard",
		task.Estimate{OptimisticHours: 3, LikelyHours: 5, PessimisticHours: 8})

	result, err := e.Decompose(parent, Options{ApplyRules: true, MaxDepth: 0})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	var layout *task.Task
	dependents := 0
	for _, c := range result.Children {
		if strings.Contains(strings.ToLower(c.Title), "layout") {
			layout = c
		}
	}
	if layout == nil {
		t.Fatal("no layout component task produced")
	}
	for _, c := range result.Children {
		for _, dep := range c.Dependencies {
			if dep.TaskID == layout.ID {
				dependents++
			}
		}
	}
	if dependents != 3 {
		t.Fatalf("dependents on layout = %d, want 3 (forms, tables, charts)", dependents)
	}
}

func TestDecompose_NoStagesEnabledProducesNoChildren(t *testing.T) {
	e := testEngine()
	parent := newDecompositionParent(t, "implement billing reconciliation job",
		task.Estimate{OptimisticHours: 1, LikelyHours: 2, PessimisticHours: 3})

	result, err := e.Decompose(parent, Options{})
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(result.Children) != 0 {
		t.Fatalf("len(result.Children) = %d, want 0 with every stage disabled", len(result.Children))
	}
}
