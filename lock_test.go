package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.pid")
	lock := NewLockManager(path)

	if lock.IsLocked() {
		t.Error("IsLocked() = true before Acquire")
	}

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file not written: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file contains %q, want own PID", data)
	}

	if !lock.IsLocked() {
		t.Error("IsLocked() = false while own process holds the lock")
	}

	lock.Release()
	if lock.IsLocked() {
		t.Error("IsLocked() = true after Release")
	}

	// Release is idempotent.
	lock.Release()
}

func TestIsLockedCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}

	lock := NewLockManager(path)
	if lock.IsLocked() {
		t.Error("corrupted lock file must be treated as unlocked")
	}
}

func TestIsLockedStalePID(t *testing.T) {
	// A process that has already exited leaves a stale lock.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot spawn helper process: %v", err)
	}
	deadPID := cmd.Process.Pid

	path := filepath.Join(t.TempDir(), "batch.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(deadPID)), 0644); err != nil {
		t.Fatal(err)
	}

	lock := NewLockManager(path)
	if lock.IsLocked() {
		t.Error("lock file referencing a dead process must be stale")
	}
}

func TestPidAlive(t *testing.T) {
	if !pidAlive(os.Getpid()) {
		t.Error("pidAlive(own pid) = false")
	}
	if pidAlive(0) {
		t.Error("pidAlive(0) = true")
	}
	if pidAlive(-1) {
		t.Error("pidAlive(-1) = true")
	}
}
