package flock

import (
	"path/filepath"
	"testing"
)

func TestLockExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	fl := New(path)
	if err := fl.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	other := New(path)
	acquired, err := other.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if acquired {
		t.Error("TryLock() acquired a lock held by another handle")
	}

	if err := fl.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	acquired, err = other.TryLock()
	if err != nil {
		t.Fatalf("TryLock() after unlock error = %v", err)
	}
	if !acquired {
		t.Error("TryLock() failed to acquire a released lock")
	}
	_ = other.Unlock()
}

func TestUnlockWithoutLock(t *testing.T) {
	fl := New(filepath.Join(t.TempDir(), "test.lock"))
	if err := fl.Unlock(); err != nil {
		t.Errorf("Unlock() on unheld lock error = %v", err)
	}
}
