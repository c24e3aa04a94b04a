// Package clock implements the musical-time clock that drives the sequencers.
//
// Tempo is kept as a fixed-point tick period (scaled by 2^8) so that long
// sessions accumulate no floating point drift: every advance adds whole
// hardware ticks to an integer accumulator and removes whole steps from it.
package clock

import (
	"math"
	"sync"
)

const (
	MinBPM = 20
	MaxBPM = 200

	MinBeatsPerBar = 1
	MaxBeatsPerBar = 16

	// StepsPerBeat is the global step resolution. Track resolutions must
	// divide it.
	StepsPerBeat = 16

	DefaultBPM         = 120
	DefaultBeatsPerBar = 4

	fixedShift = 8
)

// Status is the transport state of the clock.
type Status int

const (
	Stopped Status = iota
	Playing
	Paused
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Position is the musical position of the last played step.
type Position struct {
	Bar         int
	Beat        int
	DeltaStep   int
	Step        int64 // steps played since Start
	BeatsPerBar int
}

// Snapshot is a copy of the clock state for display.
type Snapshot struct {
	BPM      float64
	Status   Status
	Position Position
}

// Clock converts elapsed hardware ticks into sequencer steps.
//
// Clock embeds a mutex shared by the audio goroutine and the control
// goroutine. Every method except Snapshot must be called with the clock
// locked.
type Clock struct {
	sync.Mutex

	src          Source
	bpm          float64
	ticksPerStep uint64
	acc          uint64
	lastTick     uint64
	status       Status
	pos          Position
}

// New creates a stopped clock reading time from src.
func New(src Source, bpm float64) *Clock {
	c := &Clock{
		src: src,
		pos: Position{BeatsPerBar: DefaultBeatsPerBar},
	}
	if !c.SetBPM(bpm) {
		c.SetBPM(DefaultBPM)
	}
	return c
}

// TicksForBPM returns the fixed-point tick period of one step at bpm for a
// source running at freq ticks per second.
func TicksForBPM(freq uint64, bpm float64) uint64 {
	return uint64((float64(freq) * 60 / bpm) / StepsPerBeat * (1 << fixedShift))
}

// SetBPM changes the tempo. Values outside [MinBPM, MaxBPM] and values equal
// to the current tempo are ignored. It reports whether the tempo changed.
func (c *Clock) SetBPM(bpm float64) bool {
	if bpm < MinBPM || bpm > MaxBPM || bpm == c.bpm {
		return false
	}
	c.bpm = bpm
	c.ticksPerStep = TicksForBPM(c.src.Frequency(), bpm)
	c.acc = 0
	return true
}

// SetBeatsPerBar changes the bar length used for the musical position.
func (c *Clock) SetBeatsPerBar(n int) bool {
	if n < MinBeatsPerBar || n > MaxBeatsPerBar || n == c.pos.BeatsPerBar {
		return false
	}
	c.pos.BeatsPerBar = n
	return true
}

// Start resets the musical position and starts playing. The accumulator is
// seeded with one full step so the first Advance fires immediately.
func (c *Clock) Start() {
	c.status = Playing
	c.resetPosition()
	c.acc = c.ticksPerStep
	c.lastTick = c.src.Ticks()
}

// Stop stops playback and rewinds the musical position.
func (c *Clock) Stop() {
	c.status = Stopped
	c.resetPosition()
}

// Pause holds the position without rewinding it.
func (c *Clock) Pause() {
	if c.status == Playing {
		c.status = Paused
	}
}

// Resume continues from a pause. Time spent paused is not credited.
func (c *Clock) Resume() {
	if c.status == Paused {
		c.status = Playing
		c.lastTick = c.src.Ticks()
	}
}

// Advance credits the ticks elapsed since the previous call and returns the
// number of whole steps that became due. The fractional remainder stays in
// the accumulator.
func (c *Clock) Advance() int {
	if c.status != Playing {
		return 0
	}
	now := c.src.Ticks()
	elapsed := now - c.lastTick
	c.lastTick = now
	c.acc += elapsed << fixedShift

	if c.ticksPerStep == 0 || c.acc < c.ticksPerStep {
		return 0
	}
	n := c.acc / c.ticksPerStep
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	c.acc -= n * c.ticksPerStep
	return int(n)
}

// Step accounts for one played step and returns its global index, counted
// from zero at Start.
func (c *Clock) Step() int64 {
	idx := c.pos.Step
	beats := idx / StepsPerBeat
	c.pos.DeltaStep = int(idx % StepsPerBeat)
	c.pos.Beat = int(beats % int64(c.pos.BeatsPerBar))
	c.pos.Bar = int(beats / int64(c.pos.BeatsPerBar))
	c.pos.Step = idx + 1
	return idx
}

func (c *Clock) resetPosition() {
	c.pos = Position{BeatsPerBar: c.pos.BeatsPerBar}
	c.acc = 0
}

func (c *Clock) BPM() float64 { return c.bpm }

func (c *Clock) Status() Status { return c.status }

func (c *Clock) Position() Position { return c.pos }

func (c *Clock) TicksPerStep() uint64 { return c.ticksPerStep }

func (c *Clock) Accumulator() uint64 { return c.acc }

// Snapshot locks the clock and copies its display state.
func (c *Clock) Snapshot() Snapshot {
	c.Lock()
	defer c.Unlock()
	return Snapshot{BPM: c.bpm, Status: c.status, Position: c.pos}
}
