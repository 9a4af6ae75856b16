package session

import (
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// maxInMemoryCheckpoints bounds the trailing window kept in memory; the
// storage layer retains the full history regardless.
const maxInMemoryCheckpoints = 100

// Checkpoint is an append-only progress record for a session, unique on
// (SessionID, Sequence).
type Checkpoint struct {
	SessionID string
	Sequence  int
	Data      map[string]interface{}
	CreatedAt time.Time
	Metadata  map[string]interface{}
}

// CheckpointLog keeps the trailing window of a session's checkpoints in
// memory, enforcing the strictly-increasing sequence invariant.
type CheckpointLog struct {
	sessionID string
	entries   []Checkpoint
	nextSeq   int
}

// NewCheckpointLog creates an empty log for a session.
func NewCheckpointLog(sessionID string) *CheckpointLog {
	return &CheckpointLog{sessionID: sessionID, nextSeq: 1}
}

// Append adds a new checkpoint with the next sequence number, trimming the
// in-memory window to maxInMemoryCheckpoints.
func (l *CheckpointLog) Append(data map[string]interface{}, metadata map[string]interface{}, now time.Time) Checkpoint {
	cp := Checkpoint{
		SessionID: l.sessionID,
		Sequence:  l.nextSeq,
		Data:      data,
		Metadata:  metadata,
		CreatedAt: now,
	}
	l.nextSeq++
	l.entries = append(l.entries, cp)
	if len(l.entries) > maxInMemoryCheckpoints {
		l.entries = l.entries[len(l.entries)-maxInMemoryCheckpoints:]
	}
	return cp
}

// Len returns the number of checkpoints currently held in memory.
func (l *CheckpointLog) Len() int {
	return len(l.entries)
}

// Latest returns the most recent checkpoint, or an error if none exist.
func (l *CheckpointLog) Latest() (Checkpoint, error) {
	if len(l.entries) == 0 {
		return Checkpoint{}, apperrors.NotFound("checkpoint", l.sessionID)
	}
	return l.entries[len(l.entries)-1], nil
}

// All returns every checkpoint currently held in memory, oldest first.
func (l *CheckpointLog) All() []Checkpoint {
	out := make([]Checkpoint, len(l.entries))
	copy(out, l.entries)
	return out
}
