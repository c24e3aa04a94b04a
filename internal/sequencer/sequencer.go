// Package sequencer implements the per-track circular step list.
package sequencer

import (
	"github.com/icco/pocketseq/internal/clock"
	"github.com/icco/pocketseq/internal/instrument"
)

// MaxSteps is the longest sequence a track can hold.
const MaxSteps = 64

// Step is one slot of the sequence. Data points into the track's parameter
// array; the sequencer never owns it.
type Step struct {
	Active bool
	Data   *instrument.TrackParameters
}

// Sequencer walks a ring of steps. The current index is always in
// [0, Len()).
type Sequencer struct {
	params       []instrument.TrackParameters
	steps        []Step
	stepsPerBeat int
	cur          int
}

// New returns a sequencer of n steps over params, which must hold at least
// MaxSteps records and outlive the sequencer. n is clamped to [1, MaxSteps]
// and an invalid stepsPerBeat falls back to 4.
func New(params []instrument.TrackParameters, n, stepsPerBeat int) *Sequencer {
	if len(params) < MaxSteps {
		panic("sequencer: parameter array shorter than MaxSteps")
	}
	n = max(1, min(n, MaxSteps))
	s := &Sequencer{
		params:       params[:MaxSteps],
		steps:        make([]Step, n, MaxSteps),
		stepsPerBeat: 4,
	}
	for i := range s.steps {
		s.steps[i].Data = &s.params[i]
	}
	s.SetStepsPerBeat(stepsPerBeat)
	s.Reset()
	return s
}

// AdvanceStep moves to the next step, wrapping at the end, and returns it.
func (s *Sequencer) AdvanceStep() Step {
	s.cur++
	if s.cur >= len(s.steps) {
		s.cur = 0
	}
	return s.steps[s.cur]
}

// Resize changes the sequence length. Existing steps are kept; new slots
// copy the active flag and parameters of the former last step. Zero and
// lengths above MaxSteps are rejected.
func (s *Sequencer) Resize(n int) bool {
	if n <= 0 || n > MaxSteps {
		return false
	}
	old := len(s.steps)
	if n == old {
		return true
	}
	last := s.steps[old-1]
	s.steps = s.steps[:n]
	for i := old; i < n; i++ {
		s.params[i] = *last.Data
		s.steps[i] = Step{Active: last.Active, Data: &s.params[i]}
	}
	if s.cur >= n {
		s.cur %= n
	}
	return true
}

// Toggle flips the active flag of step i.
func (s *Sequencer) Toggle(i int) bool {
	if i < 0 || i >= len(s.steps) {
		return false
	}
	s.steps[i].Active = !s.steps[i].Active
	return true
}

// SetActive sets the active flag of step i.
func (s *Sequencer) SetActive(i int, active bool) bool {
	if i < 0 || i >= len(s.steps) {
		return false
	}
	s.steps[i].Active = active
	return true
}

// Set overwrites the parameters of step i.
func (s *Sequencer) Set(i int, p instrument.TrackParameters) bool {
	if i < 0 || i >= len(s.steps) {
		return false
	}
	*s.steps[i].Data = p
	return true
}

// Step returns step i without moving.
func (s *Sequencer) Step(i int) (Step, bool) {
	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	return s.steps[i], true
}

// Reset rewinds so that the next AdvanceStep lands on step 0.
func (s *Sequencer) Reset() {
	s.cur = len(s.steps) - 1
}

func (s *Sequencer) Len() int { return len(s.steps) }

// Current returns the index of the last step played.
func (s *Sequencer) Current() int { return s.cur }

func (s *Sequencer) StepsPerBeat() int { return s.stepsPerBeat }

// SetStepsPerBeat changes the track resolution. Values that do not divide
// clock.StepsPerBeat are rejected.
func (s *Sequencer) SetStepsPerBeat(n int) bool {
	if !ValidStepsPerBeat(n) {
		return false
	}
	s.stepsPerBeat = n
	return true
}

// Due reports whether the track advances on the global step idx.
func (s *Sequencer) Due(idx int64) bool {
	return idx%int64(clock.StepsPerBeat/s.stepsPerBeat) == 0
}

// ValidStepsPerBeat reports whether n divides the global resolution.
func ValidStepsPerBeat(n int) bool {
	return n > 0 && n <= clock.StepsPerBeat && clock.StepsPerBeat%n == 0
}
