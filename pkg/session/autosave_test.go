package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAutosaveDebounceCollapses(t *testing.T) {
	var fires atomic.Int32
	a := newAutosave(50*time.Millisecond, func() { fires.Add(1) })

	for i := 0; i < 5; i++ {
		a.Arm()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Fatalf("fired %d times, want exactly 1", got)
	}
}

func TestAutosaveStopCancels(t *testing.T) {
	var fires atomic.Int32
	a := newAutosave(30*time.Millisecond, func() { fires.Add(1) })

	a.Arm()
	if !a.Stop() {
		t.Fatalf("Stop() = false, want true for an armed timer")
	}
	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Fatalf("fired %d times after Stop, want 0", got)
	}

	if a.Stop() {
		t.Fatalf("Stop() = true with no timer armed")
	}
}

func TestAutosaveRearmAfterFire(t *testing.T) {
	var fires atomic.Int32
	a := newAutosave(20*time.Millisecond, func() { fires.Add(1) })

	a.Arm()
	time.Sleep(80 * time.Millisecond)
	a.Arm()
	time.Sleep(80 * time.Millisecond)

	if got := fires.Load(); got != 2 {
		t.Fatalf("fired %d times, want 2", got)
	}
}
