package session

import "testing"

func TestCanTransitionTo_PermittedPaths(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusQueued, true},
		{StatusPending, StatusRunning, false},
		{StatusQueued, StatusRunning, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusPartiallyCompleted, true},
		{StatusPartiallyCompleted, StatusRunning, true},
		{StatusPartiallyCompleted, StatusCompleted, true},
		{StatusPartiallyCompleted, StatusFailed, false},
		{StatusCompleted, StatusRunning, false},
		{StatusPaused, StatusCancelled, true},
		{StatusDegraded, StatusCompleted, true},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsActive(t *testing.T) {
	active := []Status{StatusQueued, StatusRunning, StatusPaused, StatusDegraded}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s.IsActive() = false, want true", s)
		}
	}
	if StatusCompleted.IsActive() {
		t.Error("StatusCompleted.IsActive() = true, want false")
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusTimeout, StatusStopped, StatusCancelled, StatusOrphaned}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	if StatusRunning.IsTerminal() {
		t.Error("StatusRunning.IsTerminal() = true, want false")
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []Status{StatusFailed, StatusTimeout, StatusStopped}
	for _, s := range recoverable {
		if !s.IsRecoverable() {
			t.Errorf("%s.IsRecoverable() = false, want true", s)
		}
	}
	if StatusCancelled.IsRecoverable() {
		t.Error("StatusCancelled.IsRecoverable() = true, want false")
	}
}
