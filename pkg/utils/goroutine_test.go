package utils

import (
	"testing"
	"time"
)

func TestGoroutineLeakDetector(t *testing.T) {
	t.Run("CleanRun", func(t *testing.T) {
		det := NewGoroutineLeakDetector(t)
		det.Start()

		done := make(chan struct{})
		go func() { close(done) }()
		<-done

		det.Check()
	})

	t.Run("ReportsLeak", func(t *testing.T) {
		inner := &testing.T{}
		det := NewGoroutineLeakDetector(inner).SetStabilizeDelay(50 * time.Millisecond)
		det.Start()

		block := make(chan struct{})
		t.Cleanup(func() { close(block) })
		go func() { <-block }()

		det.Check()
		if !inner.Failed() {
			t.Error("leaked goroutine was not reported")
		}
	})

	t.Run("AllowedGrowth", func(t *testing.T) {
		inner := &testing.T{}
		det := NewGoroutineLeakDetector(inner).
			SetAllowedGrowth(1).
			SetStabilizeDelay(50 * time.Millisecond)
		det.Start()

		block := make(chan struct{})
		t.Cleanup(func() { close(block) })
		go func() { <-block }()

		det.Check()
		if inner.Failed() {
			t.Error("growth within the allowance was reported as a leak")
		}
	})
}
