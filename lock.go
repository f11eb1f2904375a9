package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// LockManager enforces at-most-one active orchestrator per content
// type through an advisory PID lock file. A lock file naming a dead
// process is stale and counts as unlocked.
type LockManager struct {
	path string
}

func NewLockManager(path string) *LockManager {
	return &LockManager{path: path}
}

// Acquire writes the current process ID to the lock file.
func (m *LockManager) Acquire() error {
	return os.WriteFile(m.path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// IsLocked reports whether a live process holds the lock. A corrupted
// lock file is treated as unlocked with a warning.
func (m *LockManager) IsLocked() bool {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("Warning: corrupted lock file %s, treating as unlocked", m.path)
		return false
	}
	return pidAlive(pid)
}

// Release removes the lock file. Idempotent.
func (m *LockManager) Release() {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: removing lock file %s: %v", m.path, err)
	}
}

// pidAlive probes the process table with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
