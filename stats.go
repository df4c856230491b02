package lofarcap

import (
	"os"
	"sync"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/stat"
)

// FillTracker accumulates the ring's fill fraction over the life of a run,
// per §4.5's "maximum and mean fill level" requirement. It is fed by the
// consumer loop, once per iteration, and read by the status publisher and
// by the end-of-run summary.
type FillTracker struct {
	mu      sync.Mutex
	max     float64
	samples []float64 // fill fraction, one entry per consumer iteration
}

// NewFillTracker returns an empty tracker.
func NewFillTracker() *FillTracker {
	return &FillTracker{}
}

// Observe records one fill-fraction sample in [0, 1].
func (t *FillTracker) Observe(fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fraction > t.max {
		t.max = fraction
	}
	t.samples = append(t.samples, fraction)
}

// MaxMean returns the maximum fill fraction observed and the arithmetic
// mean across all samples seen so far.
func (t *FillTracker) MaxMean() (max, mean float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) == 0 {
		return 0, 0
	}
	return t.max, stat.Mean(t.samples, nil)
}

// DumpNPY writes the full fill-fraction history to path in NumPy .npy
// format, for offline plotting (SPEC_FULL.md §4.5 supplement). It is only
// called when --fillhistory is set.
func (t *FillTracker) DumpNPY(path string) error {
	t.mu.Lock()
	samples := append([]float64(nil), t.samples...)
	t.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return setupErr("create fill history file", err)
	}
	defer f.Close()

	if err := npyio.Write(f, samples); err != nil {
		return fatalErr("write fill history", err)
	}
	return nil
}
