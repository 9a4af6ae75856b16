package session

// Status is a session's position in its lifecycle state machine.
type Status int

const (
	StatusPending Status = iota
	StatusQueued
	StatusRunning
	StatusPaused
	StatusDegraded
	StatusPartiallyCompleted
	StatusCompleted
	StatusFailed
	StatusTimeout
	StatusStopped
	StatusCancelled
	StatusOrphaned
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusDegraded:
		return "degraded"
	case StatusPartiallyCompleted:
		return "partially_completed"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	case StatusStopped:
		return "stopped"
	case StatusCancelled:
		return "cancelled"
	case StatusOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// permittedTransitions is the session status machine's transition table.
// PARTIALLY_COMPLETED is deliberately re-entrant to running, matching the
// spec's resolution of the upstream ambiguity (see DESIGN.md open questions).
var permittedTransitions = map[Status][]Status{
	StatusPending:            {StatusQueued, StatusCancelled, StatusFailed},
	StatusQueued:             {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning:            {StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusTimeout, StatusPaused, StatusStopped, StatusDegraded},
	StatusPaused:             {StatusRunning, StatusStopped, StatusCancelled},
	StatusDegraded:           {StatusRunning, StatusFailed, StatusCompleted, StatusStopped},
	StatusPartiallyCompleted: {StatusRunning, StatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range permittedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether s is one of the non-terminal, in-flight statuses.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusPaused, StatusDegraded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s ends the session's lifecycle. Note that
// StatusPartiallyCompleted is conditionally terminal: its only outbound
// transitions are back to running or on to completed, so a session parked
// there with no further retries is effectively done, but CanTransitionTo
// still allows it to resume.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusTimeout, StatusStopped, StatusCancelled, StatusOrphaned:
		return true
	default:
		return false
	}
}

// IsErrorLike reports whether s represents a failure or degraded mode.
func (s Status) IsErrorLike() bool {
	switch s {
	case StatusFailed, StatusTimeout, StatusStopped, StatusCancelled, StatusOrphaned, StatusDegraded:
		return true
	default:
		return false
	}
}

// IsRecoverable reports whether a session may be retried purely on the
// basis of its current status (callers must additionally check checkpoint
// existence and retry_count, see Session.IsRecoverable).
func (s Status) IsRecoverable() bool {
	switch s {
	case StatusFailed, StatusTimeout, StatusStopped:
		return true
	default:
		return false
	}
}
