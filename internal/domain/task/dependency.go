package task

// DependencyType classifies how one task's timing relates to another's.
type DependencyType string

const (
	DependencyFinishToStart DependencyType = "finish_to_start"
	DependencyStartToStart  DependencyType = "start_to_start"
	DependencyFinishToFinish DependencyType = "finish_to_finish"
	DependencyStartToFinish DependencyType = "start_to_finish"
)

// Dependency links this task to another, with a relation type.
type Dependency struct {
	TaskID string
	Type   DependencyType
}

// Satisfied reports whether a dependency on a predecessor task is met,
// given the predecessor's current status and, for start-based relations,
// whether it has begun.
func (d Dependency) Satisfied(predecessorStatus Status, predecessorStarted bool) bool {
	switch d.Type {
	case DependencyFinishToStart, DependencyFinishToFinish:
		return predecessorStatus == StatusCompleted
	case DependencyStartToStart, DependencyStartToFinish:
		return predecessorStarted || predecessorStatus == StatusCompleted
	default:
		return false
	}
}
