package storage

import (
	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

// sessionStatuses and taskStatuses back the string<->Status round trip the
// postgres store needs for its status columns; both Status types are
// int-backed with a String() method but no inverse, so storage keeps
// its own small lookup rather than asking the domain packages to grow one
// just for persistence.
var sessionStatuses = []session.Status{
	session.StatusPending, session.StatusQueued, session.StatusRunning,
	session.StatusPaused, session.StatusDegraded, session.StatusPartiallyCompleted,
	session.StatusCompleted, session.StatusFailed, session.StatusTimeout,
	session.StatusStopped, session.StatusCancelled, session.StatusOrphaned,
}

var taskStatuses = []task.Status{
	task.StatusPending, task.StatusReady, task.StatusAssigned, task.StatusInProgress,
	task.StatusBlocked, task.StatusPaused, task.StatusCompleted, task.StatusFailed,
	task.StatusCancelled, task.StatusSkipped,
}

// ParseSessionStatus recovers a session.Status from its String() form, for
// implementations (e.g. postgres) that persist status as text.
func ParseSessionStatus(s string) (session.Status, error) {
	for _, st := range sessionStatuses {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, apperrors.InvalidFormat("status", "a known session status")
}

// ParseTaskStatus recovers a task.Status from its String() form.
func ParseTaskStatus(s string) (task.Status, error) {
	for _, st := range taskStatuses {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, apperrors.InvalidFormat("status", "a known task status")
}
