// Package context implements the versioned key-value execution context
// entity scoped to a session, agent, global, or temporary lifetime. It is
// unrelated to Go's stdlib context.Context, which carries the
// request-scoped tenant/deadline plumbing instead (see internal/tenancy).
package context

import (
	"fmt"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Scope is the lifetime/visibility class of a Context entity.
type Scope string

const (
	ScopeTemporary Scope = "temporary"
	ScopeSession   Scope = "session"
	ScopeAgent     Scope = "agent"
	ScopeGlobal    Scope = "global"
)

// permissiveness orders scopes from least to most permissive, used when
// promoting the scope of a merge result.
var permissiveness = map[Scope]int{
	ScopeTemporary: 0,
	ScopeSession:   1,
	ScopeAgent:     2,
	ScopeGlobal:    3,
}

// MergeStrategy controls how conflicting keys are resolved during Merge.
type MergeStrategy string

const (
	MergeLastWriteWins MergeStrategy = "last_write_wins"
	MergeDeepMerge     MergeStrategy = "deep_merge"
	MergePreferSource  MergeStrategy = "prefer_source"
	MergePreferTarget  MergeStrategy = "prefer_target"
	MergeManual        MergeStrategy = "manual"
)

// defaultTemporaryTTL is applied to scope-temporary contexts unless overridden.
const defaultTemporaryTTL = time.Hour

// Change is one entry in a Context's bounded change history.
type Change struct {
	At   time.Time
	Kind string // "set" | "delete"
	Key  string
}

const maxChangeHistory = 50

// Context is a versioned, nested key-value store.
type Context struct {
	ID        string
	TenantID  string
	SessionID string
	AgentID   string
	Scope     Scope
	Data      map[string]interface{}
	Version   int
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]interface{}
	ExpiresAt *time.Time

	history []Change
}

// New constructs a Context, enforcing scope-specific identifier requirements.
func New(tenantID string, scope Scope, sessionID, agentID, createdBy string) (*Context, error) {
	if tenantID == "" {
		return nil, apperrors.MissingParameter("tenant_id")
	}
	if scope == ScopeSession && sessionID == "" {
		return nil, apperrors.InvalidInput("session_id", "required for session-scoped context")
	}
	if scope == ScopeAgent && agentID == "" {
		return nil, apperrors.InvalidInput("agent_id", "required for agent-scoped context")
	}

	now := time.Now().UTC()
	ctx := &Context{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		SessionID: sessionID,
		AgentID:   agentID,
		Scope:     scope,
		Data:      map[string]interface{}{},
		Version:   1,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]interface{}{},
	}
	if scope == ScopeTemporary {
		expires := now.Add(defaultTemporaryTTL)
		ctx.ExpiresAt = &expires
	}
	return ctx, nil
}

// Get reads a value by dot-path (e.g. "a.b.c"), returning ok=false if the
// path does not resolve.
func (c *Context) Get(path string) (interface{}, bool) {
	v, err := jsonpath.Get(toJSONPath(path), map[string]interface{}(c.Data))
	if err != nil {
		return nil, false
	}
	return v, true
}

func toJSONPath(dotPath string) string {
	if dotPath == "" {
		return "$"
	}
	return "$." + dotPath
}

// Set writes a value at the top-level key, bumping Version and recording
// the change. Nested dot-path writes are composed by the caller via Get on
// an intermediate map, mirroring the source's dict-merge semantics rather
// than implementing a full JSONPath writer.
func (c *Context) Set(key string, value interface{}, now time.Time) {
	c.Data[key] = value
	c.Version++
	c.UpdatedAt = now
	c.appendHistory(Change{At: now, Kind: "set", Key: key})
}

// Delete removes a top-level key, bumping Version and recording the change.
func (c *Context) Delete(key string, now time.Time) {
	delete(c.Data, key)
	c.Version++
	c.UpdatedAt = now
	c.appendHistory(Change{At: now, Kind: "delete", Key: key})
}

func (c *Context) appendHistory(ch Change) {
	c.history = append(c.history, ch)
	if len(c.history) > maxChangeHistory {
		c.history = c.history[len(c.history)-maxChangeHistory:]
	}
}

// History returns the bounded change log, oldest first.
func (c *Context) History() []Change {
	out := make([]Change, len(c.history))
	copy(out, c.history)
	return out
}

// MergeConflict records a key whose value differed between the two merge
// inputs when using MergeManual.
type MergeConflict struct {
	Key         string
	SourceValue interface{}
	TargetValue interface{}
}

// Merge combines source into target using strategy, returning a new merged
// Context. Cross-tenant merges are rejected. The result's scope is promoted
// to the more permissive of the two inputs, per temporary < session < agent
// < global.
func Merge(target, source *Context, strategy MergeStrategy, now time.Time) (*Context, []MergeConflict, error) {
	if target.TenantID != source.TenantID {
		return nil, nil, apperrors.InvalidInput("tenant_id", "cannot merge contexts across tenants")
	}

	merged := &Context{
		ID:        uuid.NewString(),
		TenantID:  target.TenantID,
		SessionID: target.SessionID,
		AgentID:   target.AgentID,
		Scope:     morePermissive(target.Scope, source.Scope),
		Data:      map[string]interface{}{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]interface{}{},
	}
	for k, v := range target.Data {
		merged.Data[k] = v
	}

	var conflicts []MergeConflict
	for k, sourceVal := range source.Data {
		targetVal, exists := merged.Data[k]
		if !exists {
			merged.Data[k] = sourceVal
			continue
		}

		switch strategy {
		case MergeLastWriteWins:
			merged.Data[k] = sourceVal
		case MergePreferSource:
			merged.Data[k] = sourceVal
		case MergePreferTarget:
			// keep targetVal
		case MergeDeepMerge:
			merged.Data[k] = deepMergeValue(targetVal, sourceVal)
		case MergeManual:
			conflicts = append(conflicts, MergeConflict{Key: k, SourceValue: sourceVal, TargetValue: targetVal})
			merged.Data[k] = targetVal
		default:
			return nil, nil, apperrors.InvalidInput("strategy", fmt.Sprintf("unknown merge strategy %q", strategy))
		}
	}

	return merged, conflicts, nil
}

func deepMergeValue(target, source interface{}) interface{} {
	targetMap, targetIsMap := target.(map[string]interface{})
	sourceMap, sourceIsMap := source.(map[string]interface{})
	if !targetIsMap || !sourceIsMap {
		return source
	}
	out := make(map[string]interface{}, len(targetMap))
	for k, v := range targetMap {
		out[k] = v
	}
	for k, v := range sourceMap {
		if existing, ok := out[k]; ok {
			out[k] = deepMergeValue(existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}

func morePermissive(a, b Scope) Scope {
	if permissiveness[b] > permissiveness[a] {
		return b
	}
	return a
}

// ExpandDotPath splits "a.b.c" into its component segments, a small helper
// used by callers that need to walk Data manually rather than through
// jsonpath.
func ExpandDotPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
