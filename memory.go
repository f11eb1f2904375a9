package main

import (
	"log"
	"runtime"
	"runtime/debug"
	"time"
)

// hardLimitFactor is the margin above the soft memory limit that is
// fatal even after a forced cleanup.
const hardLimitFactor = 1.2

// MemoryMonitor samples process memory between topics. Sampling is
// debounced internally: callers may invoke Check freely, it only reads
// memory once per interval.
type MemoryMonitor struct {
	limitMB       float64
	checkInterval time.Duration
	enabled       bool
	lastCheck     time.Time
	cleanupHooks  []func()
	readUsageMB   func() float64
}

func NewMemoryMonitor(limitMB float64, interval time.Duration, enabled bool) *MemoryMonitor {
	return &MemoryMonitor{
		limitMB:       limitMB,
		checkInterval: interval,
		enabled:       enabled,
		readUsageMB:   heapUsageMB,
	}
}

// AddCleanupHook registers a cache-clearing hook run during forced
// cleanup.
func (m *MemoryMonitor) AddCleanupHook(hook func()) {
	m.cleanupHooks = append(m.cleanupHooks, hook)
}

// Check samples memory usage at most once per interval. Above the soft
// limit it forces a cleanup and resamples; if usage is still above the
// hard limit afterwards the session cannot continue.
func (m *MemoryMonitor) Check() error {
	if !m.enabled {
		return nil
	}
	now := time.Now()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.checkInterval {
		return nil
	}
	m.lastCheck = now

	usage := m.readUsageMB()
	log.Printf("Memory usage: %.1fMB", usage)
	if usage <= m.limitMB {
		return nil
	}

	log.Printf("⚠ High memory usage: %.1fMB (limit: %.0fMB)", usage, m.limitMB)
	m.Cleanup()

	usage = m.readUsageMB()
	if usage > m.limitMB*hardLimitFactor {
		return &ResourceExhaustedError{UsageMB: usage, LimitMB: m.limitMB * hardLimitFactor}
	}
	return nil
}

// Cleanup runs registered cache-clearing hooks, forces a garbage
// collection and returns freed heap to the OS.
func (m *MemoryMonitor) Cleanup() {
	for _, hook := range m.cleanupHooks {
		hook()
	}
	runtime.GC()
	debug.FreeOSMemory()
	log.Printf("Memory after cleanup: %.1fMB", m.readUsageMB())
}

// heapUsageMB reports the live heap plus stack size of this process.
func heapUsageMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc+stats.StackInuse) / 1024 / 1024
}
