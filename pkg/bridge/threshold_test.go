package bridge

import (
	"sync"
	"testing"
)

func TestThresholdGetSet(t *testing.T) {
	th := NewThreshold(200)
	if got := th.Get(); got != 200 {
		t.Fatalf("Get() = %v, want 200", got)
	}
	th.Set(512.5)
	if got := th.Get(); got != 512.5 {
		t.Fatalf("Get() = %v, want 512.5", got)
	}
	// Set is total: no clamping.
	th.Set(-3)
	if got := th.Get(); got != -3 {
		t.Fatalf("Get() = %v, want -3", got)
	}
}

func TestThresholdPassesIsStrict(t *testing.T) {
	th := NewThreshold(500)
	if th.Passes(500) {
		t.Error("pressure equal to threshold must not pass")
	}
	if !th.Passes(500.0001) {
		t.Error("pressure above threshold must pass")
	}
	if th.Passes(499) {
		t.Error("pressure below threshold must not pass")
	}
}

func TestThresholdAdjustClamps(t *testing.T) {
	th := NewThreshold(200)
	if got := th.Adjust(50); got != 250 {
		t.Errorf("Adjust(+50) = %v, want 250", got)
	}
	if got := th.Adjust(-1000); got != 0 {
		t.Errorf("Adjust(-1000) = %v, want 0", got)
	}
	if got := th.Adjust(5000); got != MaxPressureThreshold {
		t.Errorf("Adjust(+5000) = %v, want %v", got, MaxPressureThreshold)
	}
	if th.Get() != MaxPressureThreshold {
		t.Errorf("Get() after clamp = %v", th.Get())
	}
}

func TestThresholdConcurrentAdjust(t *testing.T) {
	th := NewThreshold(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Adjust(1)
			_ = th.Get()
		}()
	}
	wg.Wait()
	if got := th.Get(); got != 100 {
		t.Fatalf("after 100 concurrent +1 adjusts Get() = %v, want 100", got)
	}
}
