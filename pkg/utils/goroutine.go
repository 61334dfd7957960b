package utils

import (
	"runtime"
	"testing"
	"time"
)

// GoroutineLeakDetector fails a test when the goroutine count at Check time
// exceeds the count recorded at Start time by more than the allowed growth.
// Counts are sampled several times so goroutines still winding down do not
// register as leaks.
type GoroutineLeakDetector struct {
	t             *testing.T
	baseline      int
	allowedGrowth int
	settle        time.Duration
	samples       int
	sampleGap     time.Duration
}

// NewGoroutineLeakDetector returns a detector with zero allowed growth.
func NewGoroutineLeakDetector(t *testing.T) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:         t,
		settle:    200 * time.Millisecond,
		samples:   3,
		sampleGap: 100 * time.Millisecond,
	}
}

// SetAllowedGrowth permits up to n extra goroutines at Check time. Useful
// when the code under test owns long-lived background workers.
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetStabilizeDelay overrides how long Start and Check wait before sampling.
func (d *GoroutineLeakDetector) SetStabilizeDelay(delay time.Duration) *GoroutineLeakDetector {
	d.settle = delay
	return d
}

// Start records the baseline goroutine count. Call before the code under test
// spawns anything.
func (d *GoroutineLeakDetector) Start() {
	time.Sleep(d.settle)
	d.baseline = runtime.NumGoroutine()
	d.t.Logf("goroutine baseline: %d", d.baseline)
}

// Check samples the goroutine count and fails the test if it grew beyond the
// baseline plus allowed growth. The lowest of several samples is used, since
// goroutines observed mid-teardown inflate a single reading.
func (d *GoroutineLeakDetector) Check() {
	time.Sleep(d.settle)

	final := runtime.NumGoroutine()
	for i := 1; i < d.samples; i++ {
		time.Sleep(d.sampleGap)
		if n := runtime.NumGoroutine(); n < final {
			final = n
		}
	}

	leaked := final - d.baseline
	if leaked <= d.allowedGrowth {
		d.t.Logf("no goroutine leak: baseline %d, final %d", d.baseline, final)
		return
	}

	d.t.Errorf("goroutine leak: baseline %d, final %d (leaked %d, allowed %d)",
		d.baseline, final, leaked, d.allowedGrowth)
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	d.t.Logf("goroutine stacks:\n%s", buf[:n])
}
