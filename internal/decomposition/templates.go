package decomposition

import (
	"fmt"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

// PhaseSpec is one entry in a Template's ordered subtask list: a named
// phase or component contributing one child task.
type PhaseSpec struct {
	Phase          string
	TitleSuffix    string
	Description    string
	Capabilities   []agent.Capability
	EstimatedHours float64
}

// Template is a named decomposition pattern carrying a complexity
// threshold, a strategy, and an ordered list of phases each contributing
// one child task titled "{parent_title} - {TitleSuffix}".
type Template struct {
	Name                  string
	Description           string
	ComplexityThreshold   task.ComplexityLevel
	DecompositionStrategy string
	MaxDepth              int
	TargetLeafComplexity  task.ComplexityLevel
	ApplicableTaskTypes   []string
	Phases                []PhaseSpec
}

// DefaultTemplates returns the built-in named templates, keyed by the name
// used to look them up.
func DefaultTemplates() map[string]Template {
	return map[string]Template{
		"web_service_implementation": {
			Name:                  "Web Service Implementation",
			Description:           "Template for implementing web services with full stack",
			ComplexityThreshold:   task.ComplexityComplex,
			DecompositionStrategy: "temporal",
			MaxDepth:              4,
			TargetLeafComplexity:  task.ComplexityModerate,
			ApplicableTaskTypes:   []string{"web_service", "api", "backend"},
			Phases: []PhaseSpec{
				{Phase: "requirements", TitleSuffix: "Requirements Analysis", Description: "Analyze and document requirements", Capabilities: []agent.Capability{agent.CapRequirementsAnalysis}, EstimatedHours: 2.0},
				{Phase: "design", TitleSuffix: "System Design", Description: "Design system architecture and API", Capabilities: []agent.Capability{agent.CapSystemDesign}, EstimatedHours: 4.0},
				{Phase: "implementation", TitleSuffix: "Implementation", Description: "Implement core functionality", Capabilities: []agent.Capability{agent.CapCodeGeneration}, EstimatedHours: 8.0},
				{Phase: "testing", TitleSuffix: "Testing", Description: "Write and execute tests", Capabilities: []agent.Capability{agent.CapTestGeneration}, EstimatedHours: 4.0},
				{Phase: "deployment", TitleSuffix: "Deployment", Description: "Deploy and configure service", Capabilities: []agent.Capability{agent.CapDeployment}, EstimatedHours: 2.0},
			},
		},
		"refactoring_task": {
			Name:                  "Code Refactoring",
			Description:           "Template for code refactoring tasks",
			ComplexityThreshold:   task.ComplexityModerate,
			DecompositionStrategy: "functional",
			MaxDepth:              3,
			TargetLeafComplexity:  task.ComplexitySimple,
			ApplicableTaskTypes:   []string{"refactoring", "optimization"},
			Phases: []PhaseSpec{
				{Phase: "analysis", TitleSuffix: "Code Analysis", Description: "Analyze current code structure", Capabilities: []agent.Capability{agent.CapCodeReview}, EstimatedHours: 1.0},
				{Phase: "planning", TitleSuffix: "Refactoring Plan", Description: "Plan refactoring approach", Capabilities: []agent.Capability{agent.CapSystemDesign}, EstimatedHours: 2.0},
				{Phase: "execution", TitleSuffix: "Refactoring Execution", Description: "Execute refactoring changes", Capabilities: []agent.Capability{agent.CapRefactoring}, EstimatedHours: 4.0},
				{Phase: "verification", TitleSuffix: "Verification", Description: "Verify refactoring didn't break functionality", Capabilities: []agent.Capability{agent.CapTestGeneration}, EstimatedHours: 2.0},
			},
		},
	}
}

// Applies reports whether tmpl's complexity threshold is met or exceeded
// by parent, the gate the original analysis service runs before expanding
// a template's phases into child tasks.
func (tmpl Template) Applies(parent *task.Task) bool {
	return complexityRank(parent.Estimate.ComplexityLevel()) >= complexityRank(tmpl.ComplexityThreshold)
}

func complexityRank(c task.ComplexityLevel) int {
	switch c {
	case task.ComplexityTrivial:
		return 0
	case task.ComplexitySimple:
		return 1
	case task.ComplexityModerate:
		return 2
	case task.ComplexityComplex:
		return 3
	case task.ComplexityExpert:
		return 4
	default:
		return 0
	}
}

// Expand builds the template's child tasks under parent, chaining
// consecutive phases with finish-to-start dependencies whatever the
// template's DecompositionStrategy.
func (tmpl Template) Expand(parent *task.Task) ([]*task.Task, error) {
	var children []*task.Task
	var previous *task.Task

	for _, phase := range tmpl.Phases {
		title := fmt.Sprintf("%s - %s", parent.Title, phase.TitleSuffix)
		child, err := task.New(parent.TenantID, parent.SessionID, title, phase.Description, parent.Priority,
			task.Estimate{
				OptimisticHours:      phase.EstimatedHours * 0.7,
				LikelyHours:          phase.EstimatedHours,
				PessimisticHours:     phase.EstimatedHours * 1.5,
				RequiredCapabilities: phase.Capabilities,
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		if previous != nil {
			if err := child.AddDependency(task.Dependency{TaskID: previous.ID, Type: task.DependencyFinishToStart}); err != nil {
				return nil, err
			}
		}
		parent.ChildTaskIDs = append(parent.ChildTaskIDs, child.ID)
		children = append(children, child)
		previous = child
	}
	return children, nil
}
