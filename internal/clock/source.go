package clock

import (
	"sync/atomic"
	"time"
)

// Source is a monotonic hardware tick counter.
type Source interface {
	// Ticks returns the current tick count.
	Ticks() uint64
	// Frequency returns the number of ticks per second.
	Frequency() uint64
}

type systemSource struct {
	start time.Time
}

// System returns a Source backed by the Go monotonic clock, in nanoseconds.
func System() Source {
	return systemSource{start: time.Now()}
}

func (s systemSource) Ticks() uint64 {
	return uint64(time.Since(s.start))
}

func (systemSource) Frequency() uint64 { return uint64(time.Second) }

// Manual is a Source that only moves when told to. Offline rendering and
// tests use it to drive the clock deterministically.
type Manual struct {
	ticks atomic.Uint64
	freq  uint64
}

// NewManual returns a manual source running at freq ticks per second.
func NewManual(freq uint64) *Manual {
	return &Manual{freq: freq}
}

func (m *Manual) Ticks() uint64 { return m.ticks.Load() }

func (m *Manual) Frequency() uint64 { return m.freq }

// Add moves the source forward by n ticks.
func (m *Manual) Add(n uint64) {
	m.ticks.Add(n)
}

// AddSeconds moves the source forward by d, rounded up to whole ticks.
func (m *Manual) AddSeconds(d float64) {
	n := d * float64(m.freq)
	t := uint64(n)
	if float64(t) < n {
		t++
	}
	m.ticks.Add(t)
}
