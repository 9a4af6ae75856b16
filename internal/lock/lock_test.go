package lock

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

func testManager() *Manager {
	m := newManagerWithStore(newFakeStore(), logging.New("lock-test", "error", "text"), 10)
	m.renewalInterval = 20 * time.Millisecond
	return m
}

func TestAcquire_GrantsWhenFree(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "R", "owner-a", time.Second, false, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v, want true, nil", ok, err)
	}

	locked, err := m.IsLocked(ctx, "R")
	if err != nil || !locked {
		t.Fatalf("IsLocked() = %v, %v, want true, nil", locked, err)
	}
}

func TestAcquire_NonBlockingFailsOnContention(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	mustAcquire(t, m, "R", "owner-a")

	ok, err := m.Acquire(ctx, "R", "owner-b", time.Second, false, 0, time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("Acquire() = true, want false on contention")
	}
}

func TestAcquire_ReentrantForSameOwner(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	mustAcquire(t, m, "R", "owner-a")

	ok, err := m.Acquire(ctx, "R", "owner-a", time.Second, false, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v, want true, nil for same owner", ok, err)
	}
}

func TestRenew_ExtendsLeaseForOwner(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	mustAcquire(t, m, "R", "owner-a")

	if err := m.Renew(ctx, "R", "owner-a", time.Minute); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
}

func TestRenew_RejectsNonOwner(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	mustAcquire(t, m, "R", "owner-a")

	err := m.Renew(ctx, "R", "owner-b", time.Minute)
	if apperrors.CodeOf(err) != apperrors.CodeLockNotOwned {
		t.Fatalf("Renew() error = %v, want CodeLockNotOwned", err)
	}
}

func TestRelease_NoopForNonOwner(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	mustAcquire(t, m, "R", "owner-a")

	if err := m.Release(ctx, "R", "owner-b"); err != nil {
		t.Fatalf("Release() error = %v, want nil no-op", err)
	}
	locked, _ := m.IsLocked(ctx, "R")
	if !locked {
		t.Fatal("Release() by non-owner released the lock")
	}
}

func TestRelease_FreesResourceForOwner(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	mustAcquire(t, m, "R", "owner-a")

	if err := m.Release(ctx, "R", "owner-a"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	locked, _ := m.IsLocked(ctx, "R")
	if locked {
		t.Fatal("Release() by owner left the lock held")
	}
}

func TestGetLockInfo_NotFoundWhenUnlocked(t *testing.T) {
	m := testManager()
	_, err := m.GetLockInfo(context.Background(), "R")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("GetLockInfo() error = %v, want CodeNotFound", err)
	}
}

func TestWithLock_ReleasesOnSuccessAndError(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	err := m.WithLock(ctx, "R", "owner-a", time.Second, time.Minute, 0, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	locked, _ := m.IsLocked(ctx, "R")
	if locked {
		t.Fatal("WithLock() left lock held after success")
	}

	sentinel := apperrors.Internal("boom", nil)
	err = m.WithLock(ctx, "R", "owner-a", time.Second, time.Minute, 0, func(ctx context.Context) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("WithLock() error = %v, want sentinel propagated", err)
	}
	locked, _ = m.IsLocked(ctx, "R")
	if locked {
		t.Fatal("WithLock() left lock held after fn error")
	}
}

// TestAcquire_FairnessOrdersByPriority reproduces the seed scenario where
// three callers race for a just-released resource with priorities
// low=0, high=10, medium=5 and expects grant order high, medium, low.
func TestAcquire_FairnessOrdersByPriority(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	mustAcquire(t, m, "R", "holder")

	type result struct {
		owner string
		order int
	}
	results := make(chan result, 3)
	var seq int32
	var mu sync.Mutex
	next := func() int {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return int(seq)
	}

	var wg sync.WaitGroup
	start := func(owner string, priority int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Acquire(ctx, "R", owner, 2*time.Second, true, priority, time.Minute)
			if err != nil || !ok {
				t.Errorf("Acquire(%s) = %v, %v", owner, ok, err)
				return
			}
			results <- result{owner: owner, order: next()}
			if err := m.Release(ctx, "R", owner); err != nil {
				t.Errorf("Release(%s) error = %v", owner, err)
			}
		}()
	}

	start("low", 0)
	start("high", 10)
	start("medium", 5)

	time.Sleep(100 * time.Millisecond)
	if err := m.Release(ctx, "R", "holder"); err != nil {
		t.Fatalf("Release(holder) error = %v", err)
	}

	wg.Wait()
	close(results)

	order := map[string]int{}
	for r := range results {
		order[r.owner] = r.order
	}
	if !(order["high"] < order["medium"] && order["medium"] < order["low"]) {
		t.Fatalf("grant order = %v, want high < medium < low", order)
	}
}

func TestAcquire_BlockingTimesOutWhenNeverFreed(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	mustAcquire(t, m, "R", "holder")

	_, err := m.Acquire(ctx, "R", "waiter", 60*time.Millisecond, true, 0, time.Minute)
	if apperrors.CodeOf(err) != apperrors.CodeLockTimeout {
		t.Fatalf("Acquire() error = %v, want CodeLockTimeout", err)
	}
}

func TestAcquire_DetectsTwoPartyDeadlock(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	mustAcquire(t, m, "A", "owner-1")
	mustAcquire(t, m, "B", "owner-2")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.setWaiting("owner-1", "B")
		_, err := m.Acquire(ctx, "B", "owner-1", 300*time.Millisecond, true, 0, time.Minute)
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, err := m.Acquire(ctx, "A", "owner-2", 2*time.Second, true, 0, time.Minute)
		errs <- err
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deadlocked Acquire never returned")
	}
	close(errs)
	for err := range errs {
		if apperrors.CodeOf(err) != apperrors.CodeLockTimeout {
			t.Fatalf("Acquire() error = %v, want CodeLockTimeout (deadlock)", err)
		}
	}
}

// TestAcquire_WarnsOnLexicalOrderViolationButGrants covers the
// local-nesting-policy requirement: owner-a holds "B" and then acquires "A",
// which sorts before "B", so the manager should log a warning but still
// grant the lock rather than reject the acquisition.
func TestAcquire_WarnsOnLexicalOrderViolationButGrants(t *testing.T) {
	m := testManager()
	var buf bytes.Buffer
	m.logger.Logger.SetOutput(&buf)
	m.logger.Logger.SetLevel(logrus.WarnLevel)
	ctx := context.Background()

	mustAcquire(t, m, "B", "owner-a")

	ok, err := m.Acquire(ctx, "A", "owner-a", time.Second, false, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v, want true, nil (warn, not reject)", ok, err)
	}
	if !strings.Contains(buf.String(), "monotone lexical policy") {
		t.Fatalf("log output = %q, want a lexical-order warning", buf.String())
	}
}

func TestAcquire_NoWarningWhenOrderIsMonotone(t *testing.T) {
	m := testManager()
	var buf bytes.Buffer
	m.logger.Logger.SetOutput(&buf)
	m.logger.Logger.SetLevel(logrus.WarnLevel)
	ctx := context.Background()

	mustAcquire(t, m, "A", "owner-a")

	ok, err := m.Acquire(ctx, "B", "owner-a", time.Second, false, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v, want true, nil", ok, err)
	}
	if strings.Contains(buf.String(), "monotone lexical policy") {
		t.Fatalf("log output = %q, want no lexical-order warning", buf.String())
	}
}

func mustAcquire(t *testing.T, m *Manager, resource, owner string) {
	t.Helper()
	ok, err := m.Acquire(context.Background(), resource, owner, time.Second, false, 0, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire(%s, %s) = %v, %v", resource, owner, ok, err)
	}
}
