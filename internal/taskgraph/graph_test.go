package taskgraph

import (
	"testing"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

func newTask(t *testing.T, title string, hours float64) *task.Task {
	t.Helper()
	tk, err := task.New("tenant-1", "session-1", title, "description", task.PriorityMedium,
		task.Estimate{OptimisticHours: hours, LikelyHours: hours, PessimisticHours: hours})
	if err != nil {
		t.Fatalf("task.New() error = %v", err)
	}
	return tk
}

func TestValidateDependencies_PassesOnDAG(t *testing.T) {
	a := newTask(t, "implement service A", 1)
	b := newTask(t, "implement service B", 1)
	mustAdd(t, b, task.Dependency{TaskID: a.ID, Type: task.DependencyFinishToStart})

	g := New([]*task.Task{a, b})
	if err := g.ValidateDependencies(); err != nil {
		t.Fatalf("ValidateDependencies() error = %v, want nil", err)
	}
}

func TestValidateDependencies_DetectsCycle(t *testing.T) {
	a := newTask(t, "implement service A", 1)
	b := newTask(t, "implement service B", 1)
	mustAdd(t, b, task.Dependency{TaskID: a.ID, Type: task.DependencyFinishToStart})
	mustAdd(t, a, task.Dependency{TaskID: b.ID, Type: task.DependencyFinishToStart})

	g := New([]*task.Task{a, b})
	err := g.ValidateDependencies()
	if apperrors.CodeOf(err) != apperrors.CodeCycleDetected {
		t.Fatalf("ValidateDependencies() error = %v, want CodeCycleDetected", err)
	}
}

func TestCanStart_BlockedUntilDependencySatisfied(t *testing.T) {
	a := newTask(t, "implement service A", 1)
	b := newTask(t, "implement service B", 1)
	mustAdd(t, b, task.Dependency{TaskID: a.ID, Type: task.DependencyFinishToStart})

	g := New([]*task.Task{a, b})
	if g.CanStart(b.ID) {
		t.Fatal("CanStart(b) = true before a completes, want false")
	}

	mustTransition(t, a, task.StatusReady)
	mustTransition(t, a, task.StatusAssigned)
	mustTransition(t, a, task.StatusInProgress)
	mustTransition(t, a, task.StatusCompleted)

	if !g.CanStart(b.ID) {
		t.Fatal("CanStart(b) = false after a completes, want true")
	}
}

func TestReady_ReturnsOnlyUnblockedTasks(t *testing.T) {
	a := newTask(t, "implement service A", 1)
	b := newTask(t, "implement service B", 1)
	mustAdd(t, b, task.Dependency{TaskID: a.ID, Type: task.DependencyFinishToStart})

	g := New([]*task.Task{a, b})
	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != a.ID {
		t.Fatalf("Ready() = %v, want [%s]", ready, a.ID)
	}
}

func TestCriticalPath_PicksLongestWeightedChain(t *testing.T) {
	a := newTask(t, "implement service A", 2)
	b := newTask(t, "implement service B", 5)
	c := newTask(t, "implement service C", 1)
	mustAdd(t, b, task.Dependency{TaskID: a.ID, Type: task.DependencyFinishToStart})
	mustAdd(t, c, task.Dependency{TaskID: b.ID, Type: task.DependencyFinishToStart})

	g := New([]*task.Task{a, b, c})
	path, total := g.CriticalPath()

	if len(path) != 3 || path[0] != a.ID || path[1] != b.ID || path[2] != c.ID {
		t.Fatalf("CriticalPath() path = %v, want [a b c]", path)
	}
	if total != 8 {
		t.Fatalf("CriticalPath() total = %v, want 8", total)
	}
}

func TestValidateDepth_RejectsDeepHierarchy(t *testing.T) {
	tasks := make([]*task.Task, 0, 12)
	root := newTask(t, "implement root", 1)
	tasks = append(tasks, root)
	parent := root
	for i := 0; i < 11; i++ {
		child := newTask(t, "implement child", 1)
		parent.ChildTaskIDs = append(parent.ChildTaskIDs, child.ID)
		tasks = append(tasks, child)
		parent = child
	}

	g := New(tasks)
	err := g.ValidateDepth(root.ID)
	if err == nil {
		t.Fatal("ValidateDepth() = nil, want error for 12-level chain")
	}
}

func mustAdd(t *testing.T, tk *task.Task, dep task.Dependency) {
	t.Helper()
	if err := tk.AddDependency(dep); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
}

func mustTransition(t *testing.T, tk *task.Task, status task.Status) {
	t.Helper()
	if err := tk.TransitionTo(status, time.Now()); err != nil {
		t.Fatalf("TransitionTo(%v) error = %v", status, err)
	}
}
