// Package envelope provides the per-voice amplitude envelope.
package envelope

import "math"

// State is the current envelope stage.
type State int

const (
	Idle State = iota
	Attack
	Decay
	Sustain
	Release
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Attack:
		return "Attack"
	case Decay:
		return "Decay"
	case Sustain:
		return "Sustain"
	case Release:
		return "Release"
	default:
		return "Unknown"
	}
}

// Envelope is an attack/decay/sustain/release envelope whose sustain stage
// lasts a fixed number of samples, so a triggered step releases on its own.
// It is sampled once per audio frame and never allocates.
type Envelope struct {
	sampleRate float64

	state  State
	output float64
	count  int

	attackRate     float64
	decayRate      float64
	releaseRate    float64
	sustain        float64
	sustainSamples int
}

// New returns an idle envelope for the given sample rate. All durations
// start at zero, which makes every stage instantaneous.
func New(sampleRate int) *Envelope {
	e := &Envelope{sampleRate: float64(sampleRate)}
	e.SetParams(0, 0, 1, 0, 0)
	return e
}

// SetParams recomputes the per-sample rates. Durations are in milliseconds
// and sustain is a level in [0, 1].
func (e *Envelope) SetParams(attackMs, decayMs, sustain, releaseMs, durationMs float64) {
	e.attackRate = e.rate(attackMs)
	e.decayRate = e.rate(decayMs)
	e.releaseRate = e.rate(releaseMs)
	e.sustain = clamp(sustain, 0, 1)
	if durationMs > 0 {
		e.sustainSamples = int(durationMs * e.sampleRate / 1000)
	} else {
		e.sustainSamples = 0
	}
}

func (e *Envelope) rate(ms float64) float64 {
	if ms <= 0 {
		return math.Inf(1)
	}
	return 1 / (ms * e.sampleRate / 1000)
}

// Trigger restarts the envelope at the attack stage from its current level.
func (e *Envelope) Trigger() {
	e.state = Attack
	e.count = 0
}

// Release jumps to the release stage from any active stage.
func (e *Envelope) Release() {
	if e.state != Idle {
		e.state = Release
	}
}

// Reset silences the envelope immediately.
func (e *Envelope) Reset() {
	e.state = Idle
	e.output = 0
	e.count = 0
}

// Next advances the envelope by one sample and returns its level.
func (e *Envelope) Next() float64 {
	switch e.state {
	case Idle:
		e.output = 0
	case Attack:
		e.output += e.attackRate
		if e.output >= 1 {
			e.output = 1
			e.state = Decay
		}
	case Decay:
		e.output -= e.decayRate
		if e.output <= e.sustain {
			e.output = e.sustain
			e.state = Sustain
			e.count = 0
		}
	case Sustain:
		e.count++
		if e.count >= e.sustainSamples {
			e.state = Release
		}
	case Release:
		e.output -= e.releaseRate
		if e.output <= 0 {
			e.output = 0
			e.state = Idle
		}
	}
	return e.output
}

func (e *Envelope) State() State { return e.state }

func (e *Envelope) Output() float64 { return e.output }

// Active reports whether the envelope produces a non-silent level.
func (e *Envelope) Active() bool { return e.state != Idle }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
