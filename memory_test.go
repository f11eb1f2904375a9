package main

import (
	"errors"
	"testing"
	"time"
)

// fakeUsage returns successive values from the list, repeating the
// last one.
func fakeUsage(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func TestCheckBelowLimit(t *testing.T) {
	monitor := NewMemoryMonitor(100, 0, true)
	monitor.readUsageMB = fakeUsage(50)

	if err := monitor.Check(); err != nil {
		t.Errorf("Check() error = %v, want nil below the limit", err)
	}
}

func TestCheckCleanupRecovers(t *testing.T) {
	monitor := NewMemoryMonitor(100, 0, true)
	// Over the soft limit, back under the hard limit after cleanup.
	monitor.readUsageMB = fakeUsage(150, 110)

	hookCalled := false
	monitor.AddCleanupHook(func() { hookCalled = true })

	if err := monitor.Check(); err != nil {
		t.Errorf("Check() error = %v, want nil when cleanup recovers", err)
	}
	if !hookCalled {
		t.Error("cleanup hook not invoked during forced cleanup")
	}
}

func TestCheckEscalatesWhenCleanupFails(t *testing.T) {
	monitor := NewMemoryMonitor(100, 0, true)
	// Still above the hard limit (100 * 1.2) after cleanup.
	monitor.readUsageMB = fakeUsage(150, 140)

	err := monitor.Check()
	if err == nil {
		t.Fatal("Check() = nil, want ResourceExhaustedError")
	}
	var exhausted *ResourceExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want ResourceExhaustedError", err)
	}
	if exhausted.UsageMB != 140 {
		t.Errorf("UsageMB = %.1f, want 140", exhausted.UsageMB)
	}
}

func TestCheckDebounced(t *testing.T) {
	monitor := NewMemoryMonitor(100, time.Hour, true)
	samples := 0
	monitor.readUsageMB = func() float64 {
		samples++
		return 50
	}

	for i := 0; i < 5; i++ {
		if err := monitor.Check(); err != nil {
			t.Fatal(err)
		}
	}
	if samples != 1 {
		t.Errorf("sampled %d times within the interval, want 1", samples)
	}
}

func TestCheckDisabled(t *testing.T) {
	monitor := NewMemoryMonitor(100, 0, false)
	monitor.readUsageMB = func() float64 {
		t.Error("disabled monitor must not sample")
		return 0
	}

	if err := monitor.Check(); err != nil {
		t.Errorf("Check() error = %v, want nil when disabled", err)
	}
}
