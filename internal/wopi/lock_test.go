package wopi

import (
	"testing"
	"time"
)

func TestLockManager_LockUnlockedFile(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	current, ok := lm.Lock("doc1", "L1")
	if !ok || current != "L1" {
		t.Fatalf("Lock on unlocked file: got (%q, %v), want (%q, true)", current, ok, "L1")
	}
}

func TestLockManager_LockSameIDRefreshes(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok := lm.Lock("doc1", "L1")
	if !ok || current != "L1" {
		t.Fatalf("Lock with same ID: got (%q, %v), want (%q, true)", current, ok, "L1")
	}
}

func TestLockManager_LockConflict(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok := lm.Lock("doc1", "L2")
	if ok {
		t.Fatal("expected conflicting Lock to fail")
	}
	if current != "L1" {
		t.Fatalf("expected current lock %q, got %q", "L1", current)
	}
}

func TestLockManager_UnlockMatch(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok, reason := lm.Unlock("doc1", "L1")
	if !ok || current != "" || reason != "" {
		t.Fatalf("Unlock match: got (%q, %v, %q)", current, ok, reason)
	}
	if got := lm.GetLock("doc1"); got != "" {
		t.Fatalf("expected file unlocked, GetLock returned %q", got)
	}
}

func TestLockManager_UnlockMismatch(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok, reason := lm.Unlock("doc1", "L2")
	if ok {
		t.Fatal("expected mismatched Unlock to fail")
	}
	if current != "L1" {
		t.Fatalf("expected current lock %q, got %q", "L1", current)
	}
	if reason != "" {
		t.Fatalf("spec does not mandate a reason on plain mismatch, got %q", reason)
	}
}

func TestLockManager_UnlockAlreadyUnlocked(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	current, ok, reason := lm.Unlock("doc1", "L1")
	if ok {
		t.Fatal("expected Unlock of unlocked file to fail")
	}
	if current != "" {
		t.Fatalf("expected empty current lock, got %q", current)
	}
	if reason != FileNotLockedReason {
		t.Fatalf("expected reason %q, got %q", FileNotLockedReason, reason)
	}
}

func TestLockManager_RefreshLock(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok, reason := lm.RefreshLock("doc1", "L1")
	if !ok || current != "L1" || reason != "" {
		t.Fatalf("RefreshLock match: got (%q, %v, %q)", current, ok, reason)
	}

	current, ok, reason = lm.RefreshLock("doc1", "L2")
	if ok || current != "L1" || reason != "" {
		t.Fatalf("RefreshLock mismatch: got (%q, %v, %q)", current, ok, reason)
	}
}

func TestLockManager_RefreshLockUnlocked(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	current, ok, reason := lm.RefreshLock("doc1", "L1")
	if ok || current != "" || reason != FileNotLockedReason {
		t.Fatalf("RefreshLock on unlocked: got (%q, %v, %q)", current, ok, reason)
	}
}

func TestLockManager_UnlockAndRelock(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok, reason := lm.UnlockAndRelock("doc1", "L1", "L2")
	if !ok || current != "L2" || reason != "" {
		t.Fatalf("UnlockAndRelock match: got (%q, %v, %q)", current, ok, reason)
	}
	if got := lm.GetLock("doc1"); got != "L2" {
		t.Fatalf("expected new lock %q, got %q", "L2", got)
	}
}

func TestLockManager_UnlockAndRelockMismatch(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)
	lm.Lock("doc1", "L1")

	current, ok, reason := lm.UnlockAndRelock("doc1", "WRONG", "L2")
	if ok || current != "L1" || reason != "" {
		t.Fatalf("UnlockAndRelock mismatch: got (%q, %v, %q)", current, ok, reason)
	}
	if got := lm.GetLock("doc1"); got != "L1" {
		t.Fatalf("original lock should be untouched, got %q", got)
	}
}

func TestLockManager_UnlockAndRelockUnlocked(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	current, ok, reason := lm.UnlockAndRelock("doc1", "old", "new")
	if ok || current != "" || reason != FileNotLockedReason {
		t.Fatalf("UnlockAndRelock on unlocked: got (%q, %v, %q)", current, ok, reason)
	}
}

func TestLockManager_GetLock(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	if got := lm.GetLock("doc1"); got != "" {
		t.Fatalf("expected empty lock on unlocked file, got %q", got)
	}

	lm.Lock("doc1", "L1")
	if got := lm.GetLock("doc1"); got != "L1" {
		t.Fatalf("expected %q, got %q", "L1", got)
	}
}

func TestLockManager_Expiry(t *testing.T) {
	lm := NewLockManager(1 * time.Millisecond)

	lm.Lock("doc1", "L1")
	time.Sleep(5 * time.Millisecond)

	if got := lm.GetLock("doc1"); got != "" {
		t.Fatalf("expected expired lock to read as absent, got %q", got)
	}

	// A fresh Lock after expiry succeeds unconditionally, as if never locked.
	current, ok := lm.Lock("doc1", "L2")
	if !ok || current != "L2" {
		t.Fatalf("expected Lock after expiry to succeed with %q, got (%q, %v)", "L2", current, ok)
	}
}

func TestLockManager_ExpiryDemotesBeforeUnlockDecision(t *testing.T) {
	lm := NewLockManager(1 * time.Millisecond)

	lm.Lock("doc1", "L1")
	time.Sleep(5 * time.Millisecond)

	// Unlock against an expired lock behaves exactly like Unlock on an
	// unlocked file: expiry is consulted before every decision.
	current, ok, reason := lm.Unlock("doc1", "L1")
	if ok || current != "" || reason != FileNotLockedReason {
		t.Fatalf("Unlock after expiry: got (%q, %v, %q)", current, ok, reason)
	}
}

func TestLockManager_ValidateLock(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	if _, ok := lm.ValidateLock("doc1", "anything"); !ok {
		t.Fatal("expected ValidateLock to pass when unlocked")
	}

	lm.Lock("doc1", "L1")
	if _, ok := lm.ValidateLock("doc1", "L1"); !ok {
		t.Fatal("expected matching lock to validate")
	}
	current, ok := lm.ValidateLock("doc1", "L2")
	if ok || current != "L1" {
		t.Fatalf("expected mismatch to fail with current %q, got (%q, %v)", "L1", current, ok)
	}
}

func TestLockManager_IndependentFiles(t *testing.T) {
	lm := NewLockManager(30 * time.Minute)

	lm.Lock("a", "La")
	lm.Lock("b", "Lb")
	lm.Unlock("a", "La")

	if got := lm.GetLock("a"); got != "" {
		t.Fatalf("expected a unlocked, got %q", got)
	}
	if got := lm.GetLock("b"); got != "Lb" {
		t.Fatalf("expected b still locked with %q, got %q", "Lb", got)
	}
}
