package bridge

import (
	"math"
	"sync/atomic"
)

// MaxPressureThreshold caps Adjust, matching the settings screen range.
const MaxPressureThreshold = 1000.0

// Threshold is the process-wide pressure gate, shared by pointer between
// connection handlers and the consumer's settings path. Reads and writes
// never block.
type Threshold struct {
	bits atomic.Uint64
}

// NewThreshold returns a gate initialised to v.
func NewThreshold(v float64) *Threshold {
	t := &Threshold{}
	t.Set(v)
	return t
}

// Get returns the current threshold.
func (t *Threshold) Get() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Set replaces the threshold. It is visible to the next read.
func (t *Threshold) Set(v float64) {
	t.bits.Store(math.Float64bits(v))
}

// Adjust moves the threshold by delta, clamped to [0, MaxPressureThreshold],
// and returns the new value.
func (t *Threshold) Adjust(delta float64) float64 {
	for {
		old := t.bits.Load()
		v := math.Float64frombits(old) + delta
		v = math.Max(0, math.Min(MaxPressureThreshold, v))
		if t.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return v
		}
	}
}

// Passes reports whether pressure clears the gate. Equal does not pass.
func (t *Threshold) Passes(pressure float64) bool {
	return passes(pressure, t.Get())
}

func passes(pressure, threshold float64) bool {
	return pressure > threshold
}
