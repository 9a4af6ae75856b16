package context

import (
	"testing"
	"time"
)

func TestNew_ScopeRequirements(t *testing.T) {
	if _, err := New("t1", ScopeSession, "", "", "user1"); err == nil {
		t.Fatal("New(session scope, no session id): want error")
	}
	if _, err := New("t1", ScopeAgent, "", "", "user1"); err == nil {
		t.Fatal("New(agent scope, no agent id): want error")
	}
	if _, err := New("t1", ScopeGlobal, "", "", "user1"); err != nil {
		t.Fatalf("New(global scope): error = %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	ctx, _ := New("t1", ScopeGlobal, "", "", "user1")
	now := time.Now()
	startVersion := ctx.Version

	ctx.Set("foo", "bar", now)

	if ctx.Version != startVersion+1 {
		t.Errorf("Version = %d, want %d", ctx.Version, startVersion+1)
	}
	v, ok := ctx.Get("foo")
	if !ok || v != "bar" {
		t.Errorf("Get(foo) = (%v, %v), want (bar, true)", v, ok)
	}
}

func TestDelete_BumpsVersion(t *testing.T) {
	ctx, _ := New("t1", ScopeGlobal, "", "", "user1")
	now := time.Now()
	ctx.Set("foo", "bar", now)
	v := ctx.Version

	ctx.Delete("foo", now)
	if ctx.Version != v+1 {
		t.Errorf("Version = %d, want %d", ctx.Version, v+1)
	}
	if _, ok := ctx.Get("foo"); ok {
		t.Error("Get(foo) after delete: want not found")
	}
}

func TestMerge_RejectsCrossTenant(t *testing.T) {
	a, _ := New("t1", ScopeGlobal, "", "", "u1")
	b, _ := New("t2", ScopeGlobal, "", "", "u2")

	_, _, err := Merge(a, b, MergeLastWriteWins, time.Now())
	if err == nil {
		t.Fatal("Merge() across tenants: want error")
	}
}

func TestMerge_LastWriteWins(t *testing.T) {
	now := time.Now()
	a, _ := New("t1", ScopeSession, "sess-1", "", "u1")
	a.Set("key", "target-value", now)
	b, _ := New("t1", ScopeAgent, "", "agent-1", "u2")
	b.Set("key", "source-value", now)

	merged, _, err := Merge(a, b, MergeLastWriteWins, now)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	v, _ := merged.Get("key")
	if v != "source-value" {
		t.Errorf("merged key = %v, want source-value", v)
	}
	if merged.Scope != ScopeAgent {
		t.Errorf("merged Scope = %v, want agent (more permissive than session)", merged.Scope)
	}
}

func TestMerge_Manual_RecordsConflicts(t *testing.T) {
	now := time.Now()
	a, _ := New("t1", ScopeGlobal, "", "", "u1")
	a.Set("key", "target-value", now)
	b, _ := New("t1", ScopeGlobal, "", "", "u2")
	b.Set("key", "source-value", now)

	merged, conflicts, err := Merge(a, b, MergeManual, now)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
	}
	v, _ := merged.Get("key")
	if v != "target-value" {
		t.Errorf("manual merge should keep target value, got %v", v)
	}
}
