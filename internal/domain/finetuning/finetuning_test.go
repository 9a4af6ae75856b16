package finetuning

import (
	"testing"
	"time"
)

func TestTransitionTo_RetryFromFailed(t *testing.T) {
	job, err := New("t1", "gpt-base", "s3://dataset")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Now()

	must(t, job.TransitionTo(StatusQueued, now))
	must(t, job.TransitionTo(StatusRunning, now))
	must(t, job.TransitionTo(StatusFailed, now))

	if job.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 before retry", job.RetryCount)
	}

	must(t, job.TransitionTo(StatusPending, now))
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1 after retry", job.RetryCount)
	}
	if job.Status != StatusPending {
		t.Errorf("Status = %v, want pending", job.Status)
	}
}

func TestTransitionTo_RejectsInvalid(t *testing.T) {
	job, _ := New("t1", "gpt-base", "s3://dataset")
	if err := job.TransitionTo(StatusCompleted, time.Now()); err == nil {
		t.Fatal("TransitionTo(pending -> completed): want error")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
