package decomposition

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/taskgraph"
)

// Result is the outcome of decomposing one task: every child task produced
// across every recursion level, plus which templates and rule strategies
// fired at the root.
type Result struct {
	Children          []*task.Task
	AppliedTemplates  []string
	AppliedStrategies []Strategy
}

// Engine drives task expansion: auto-estimation, template application,
// rule-matched strategy decomposition, and recursive expansion of any
// child whose complexity still meets or exceeds moderate.
type Engine struct {
	logger    *logging.Logger
	templates map[string]Template
	rules     []Rule
}

// NewEngine builds an Engine over the built-in templates and rules.
func NewEngine(logger *logging.Logger) *Engine {
	return &Engine{
		logger:    logger,
		templates: DefaultTemplates(),
		rules:     DefaultRules(),
	}
}

// Options controls which stages of Decompose run, mirroring the original
// service's auto_estimate/apply_templates/apply_rules/max_depth knobs.
type Options struct {
	AutoEstimate   bool
	ApplyTemplates bool
	ApplyRules     bool
	MaxDepth       int

	// ParamOverridesJSON is an optional caller-supplied JSON document
	// (e.g. a tenant's stored decomposition preferences) loosely read via
	// ParamOverrides and merged over whichever rule matches, letting a
	// tenant tune a strategy (service_count, entities, phases, ...)
	// without redefining the rule's regex match.
	ParamOverridesJSON []byte
}

// DefaultOptions matches the original service's defaults.
func DefaultOptions() Options {
	return Options{AutoEstimate: true, ApplyTemplates: true, ApplyRules: true, MaxDepth: 3}
}

// Decompose expands root in place, appending to root.ChildTaskIDs and
// returning every child task produced (including grandchildren from
// recursive expansion), validated acyclic and within the hierarchy depth
// cap before returning.
func (e *Engine) Decompose(root *task.Task, opts Options) (Result, error) {
	var result Result

	if opts.AutoEstimate && (root.Estimate.Confidence == 0 || root.Estimate.Confidence < 0.5) {
		root.Estimate = EstimateFromDescription(fmt.Sprintf("%s %s", root.Title, root.Description))
		e.logger.WithFields(logrus.Fields{"task_id": root.ID, "expected_hours": root.Estimate.ExpectedHours()}).Debug("auto-estimated task")
	}

	text := fmt.Sprintf("%s %s", root.Title, root.Description)

	if opts.ApplyTemplates {
		for name, tmpl := range e.templates {
			if !tmpl.Applies(root) {
				continue
			}
			children, err := tmpl.Expand(root)
			if err != nil {
				e.logger.WithFields(logrus.Fields{"template": name}).WithError(err).Warn("template application failed")
				continue
			}
			if len(children) > 0 {
				result.AppliedTemplates = append(result.AppliedTemplates, name)
				result.Children = append(result.Children, children...)
			}
		}
	}

	if opts.ApplyRules {
		overrides := ParamOverrides(opts.ParamOverridesJSON)
		for _, rule := range MatchRules(e.rules, text) {
			rule.Params = mergeParams(rule.Params, overrides)
			children, err := e.applyRule(root, rule)
			if err != nil {
				e.logger.WithFields(logrus.Fields{"strategy": rule.Strategy}).WithError(err).Warn("rule application failed")
				continue
			}
			result.AppliedStrategies = append(result.AppliedStrategies, rule.Strategy)
			result.Children = append(result.Children, children...)
		}
	}

	if opts.MaxDepth > 0 {
		for _, child := range append([]*task.Task{}, result.Children...) {
			if complexityRank(child.Estimate.ComplexityLevel()) < complexityRank(task.ComplexityModerate) {
				continue
			}
			sub, err := e.Decompose(child, Options{
				AutoEstimate:   opts.AutoEstimate,
				ApplyTemplates: opts.ApplyTemplates,
				ApplyRules:     opts.ApplyRules,
				MaxDepth:       opts.MaxDepth - 1,
			})
			if err != nil {
				return result, err
			}
			result.Children = append(result.Children, sub.Children...)
		}
	}

	if err := e.validate(root, result.Children); err != nil {
		return result, err
	}

	return result, nil
}

func (e *Engine) applyRule(parent *task.Task, rule Rule) ([]*task.Task, error) {
	switch rule.Strategy {
	case StrategyMicroservice:
		return decomposeMicroservice(parent, rule.Params)
	case StrategyCRUD:
		return decomposeCRUD(parent, rule.Params)
	case StrategyUIComponents:
		return decomposeUIComponents(parent, rule.Params)
	case StrategySecurity:
		return decomposeSecurity(parent, rule.Params)
	default:
		return nil, nil
	}
}

// validate checks the expanded local graph (parent plus every descendant
// produced, including those from recursive expansion) for dependency
// cycles and confirms the parent's hierarchy stays within the depth cap.
func (e *Engine) validate(parent *task.Task, allDescendants []*task.Task) error {
	local := append([]*task.Task{parent}, allDescendants...)
	g := taskgraph.New(local)
	if err := g.ValidateDependencies(); err != nil {
		return err
	}
	return g.ValidateDepth(parent.ID)
}

func newChild(parent *task.Task, title, description string, estimate task.Estimate) (*task.Task, error) {
	child, err := task.New(parent.TenantID, parent.SessionID, title, description, parent.Priority, estimate)
	if err != nil {
		return nil, err
	}
	parent.ChildTaskIDs = append(parent.ChildTaskIDs, child.ID)
	return child, nil
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := params[key].(int); ok {
		return v
	}
	return fallback
}

func boolParam(params map[string]interface{}, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}

func stringSliceParam(params map[string]interface{}, key string, fallback []string) []string {
	if v, ok := params[key].([]string); ok {
		return v
	}
	return fallback
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decomposeMicroservice splits parent into service_count service tasks plus
// one task per shared component, with every service depending on every
// shared component (start-to-start: services can begin once shared work has
// started, without waiting for it to finish).
func decomposeMicroservice(parent *task.Task, params map[string]interface{}) ([]*task.Task, error) {
	serviceCount := intParam(params, "service_count", 3)
	sharedComponents := stringSliceParam(params, "shared_components", nil)
	divisor := float64(serviceCount + len(sharedComponents))
	likely := parent.Estimate.LikelyHours

	var children []*task.Task
	services := make([]*task.Task, 0, serviceCount)
	for i := 0; i < serviceCount; i++ {
		hours := likely / divisor
		svc, err := newChild(parent,
			fmt.Sprintf("implement %s - Service %d", parent.Title, i+1),
			fmt.Sprintf("Microservice %d implementation", i+1),
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: []agent.Capability{agent.CapCodeGeneration, agent.CapDeployment},
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
		children = append(children, svc)
	}

	for _, component := range sharedComponents {
		hours := likely * 0.5 / float64(len(sharedComponents))
		comp, err := newChild(parent,
			fmt.Sprintf("implement %s - %s Component", parent.Title, titleCase(component)),
			fmt.Sprintf("Shared %s component for microservices", component),
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: []agent.Capability{agent.CapCodeGeneration, agent.CapSystemDesign},
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		for _, svc := range services {
			if err := svc.AddDependency(task.Dependency{TaskID: comp.ID, Type: task.DependencyStartToStart}); err != nil {
				return nil, err
			}
		}
		children = append(children, comp)
	}

	return children, nil
}

// decomposeCRUD splits parent into one task per entity operation plus an
// optional test task depending on every operation (finish-to-start: tests
// only start once every operation has completed).
func decomposeCRUD(parent *task.Task, params map[string]interface{}) ([]*task.Task, error) {
	entities := stringSliceParam(params, "entities", []string{"create", "read", "update", "delete"})
	includeTests := boolParam(params, "include_tests", true)
	likely := parent.Estimate.LikelyHours

	var children []*task.Task
	var opTasks []*task.Task
	for _, op := range entities {
		hours := likely / float64(len(entities))
		opTask, err := newChild(parent,
			fmt.Sprintf("implement %s - %s", parent.Title, titleCase(op)),
			fmt.Sprintf("%s operation implementation", titleCase(op)),
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: []agent.Capability{agent.CapCodeGeneration},
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		opTasks = append(opTasks, opTask)
		children = append(children, opTask)
	}

	if includeTests {
		hours := likely * 0.3
		testTask, err := newChild(parent,
			fmt.Sprintf("test %s - Tests", parent.Title),
			"CRUD operation tests",
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: []agent.Capability{agent.CapTestGeneration},
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		for _, opTask := range opTasks {
			if err := testTask.AddDependency(task.Dependency{TaskID: opTask.ID, Type: task.DependencyFinishToStart}); err != nil {
				return nil, err
			}
		}
		children = append(children, testTask)
	}

	return children, nil
}

// decomposeUIComponents splits parent into one task per component; forms,
// tables, and charts each depend on the layout component (start-to-start).
func decomposeUIComponents(parent *task.Task, params map[string]interface{}) ([]*task.Task, error) {
	components := stringSliceParam(params, "components", []string{"layout", "navigation", "forms", "tables", "charts"})
	likely := parent.Estimate.LikelyHours

	var children []*task.Task
	var layout *task.Task
	for _, component := range components {
		hours := likely / float64(len(components))
		compTask, err := newChild(parent,
			fmt.Sprintf("implement %s - %s Component", parent.Title, titleCase(component)),
			fmt.Sprintf("UI %s component implementation", component),
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: []agent.Capability{agent.CapCodeGeneration},
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		if component == "layout" {
			layout = compTask
		}
		children = append(children, compTask)
	}

	if layout != nil {
		for _, component := range components {
			if component != "forms" && component != "tables" && component != "charts" {
				continue
			}
			for _, c := range children {
				if strings.Contains(strings.ToLower(c.Title), component) && c.ID != layout.ID {
					if err := c.AddDependency(task.Dependency{TaskID: layout.ID, Type: task.DependencyStartToStart}); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return children, nil
}

var securityCapabilitiesByPhase = map[string][]agent.Capability{
	"design":         {agent.CapSystemDesign, agent.CapSecurityAudit},
	"implementation": {agent.CapCodeGeneration, agent.CapSecurityAudit},
	"testing":        {agent.CapTestGeneration, agent.CapSecurityAudit},
	"audit":          {agent.CapSecurityAudit, agent.CapCodeReview},
}

var securityLevelMultipliers = map[string]float64{
	"low": 0.5, "medium": 1.0, "high": 1.5, "critical": 2.0,
}

// decomposeSecurity splits parent into sequential phase tasks (design,
// implementation, testing, audit by default), scaled by security level and
// chained finish-to-start, elevated to high priority for high/critical
// security levels.
func decomposeSecurity(parent *task.Task, params map[string]interface{}) ([]*task.Task, error) {
	phases := stringSliceParam(params, "phases", []string{"design", "implementation", "testing", "audit"})
	level, _ := params["security_level"].(string)
	if level == "" {
		level = "high"
	}
	multiplier, ok := securityLevelMultipliers[level]
	if !ok {
		multiplier = 1.0
	}
	likely := parent.Estimate.LikelyHours

	priority := parent.Priority
	if level == "high" || level == "critical" {
		priority = task.PriorityHigh
	}

	var children []*task.Task
	var previous *task.Task
	for _, phase := range phases {
		hours := likely * multiplier / float64(len(phases))
		caps, ok := securityCapabilitiesByPhase[phase]
		if !ok {
			caps = []agent.Capability{agent.CapCodeGeneration}
		}
		phaseTask, err := task.New(parent.TenantID, parent.SessionID,
			fmt.Sprintf("implement %s - %s", parent.Title, titleCase(phase)),
			fmt.Sprintf("Security %s phase", phase), priority,
			task.Estimate{LikelyHours: hours, OptimisticHours: hours * 0.7, PessimisticHours: hours * 1.5,
				RequiredCapabilities: caps,
				Source:               task.SourceDecomposition,
			})
		if err != nil {
			return nil, err
		}
		if previous != nil {
			if err := phaseTask.AddDependency(task.Dependency{TaskID: previous.ID, Type: task.DependencyFinishToStart}); err != nil {
				return nil, err
			}
		}
		parent.ChildTaskIDs = append(parent.ChildTaskIDs, phaseTask.ID)
		children = append(children, phaseTask)
		previous = phaseTask
	}

	return children, nil
}
