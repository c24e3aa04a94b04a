// Package event defines the commands sent to the audio goroutine.
//
// Events are plain values. The only pointer they carry is the sample of a
// SwapSample event, whose reference moves to the consumer with the event.
package event

import (
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/queue"
	"github.com/icco/pocketseq/internal/sample"
)

// Type tags an Event.
type Type int

const (
	TriggerStep Type = iota
	UpdateStep
	ToggleStep
	SetMute
	SetBPM
	SetBeatsPerBar
	StartClock
	StopClock
	PauseClock
	ResumeClock
	SwapSample
	ResetSequencers
	ResizeSequencer
	SetSolo
	SetStepsPerBeat
	SetStepActive
)

var typeNames = [...]string{
	TriggerStep:     "TriggerStep",
	UpdateStep:      "UpdateStep",
	ToggleStep:      "ToggleStep",
	SetMute:         "SetMute",
	SetBPM:          "SetBPM",
	SetBeatsPerBar:  "SetBeatsPerBar",
	StartClock:      "StartClock",
	StopClock:       "StopClock",
	PauseClock:      "PauseClock",
	ResumeClock:     "ResumeClock",
	SwapSample:      "SwapSample",
	ResetSequencers: "ResetSequencers",
	ResizeSequencer: "ResizeSequencer",
	SetSolo:         "SetSolo",
	SetStepsPerBeat: "SetStepsPerBeat",
	SetStepActive:   "SetStepActive",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Unknown"
	}
	return typeNames[t]
}

// Event is one command. Which fields are meaningful depends on Type:
//
//	TriggerStep      Track, Params
//	UpdateStep       Track, Step, Params
//	ToggleStep       Track, Step
//	SetStepActive    Track, Step, Value (non-zero is on)
//	SetMute/SetSolo  Track, Value (non-zero is on)
//	SetBPM           Value
//	SetBeatsPerBar   Value
//	SwapSample       Track is the bank slot, Sample
//	ResizeSequencer  Track, Value
//	SetStepsPerBeat  Track, Value
type Event struct {
	Type   Type
	Track  int
	Step   int
	Value  float64
	Params instrument.TrackParameters
	Sample *sample.Sample
}

// Flag reads Value as a boolean.
func (e Event) Flag() bool { return e.Value != 0 }

// Int reads Value as an integer.
func (e Event) Int() int { return int(e.Value) }

// Queue is the multi-producer queue drained by the audio goroutine.
type Queue = queue.MPSC[Event]

// NewQueue returns a queue holding capacity-1 events.
func NewQueue(capacity int) *Queue {
	return queue.NewMPSC[Event](capacity)
}

func flag(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func Trigger(track int, p instrument.TrackParameters) Event {
	return Event{Type: TriggerStep, Track: track, Params: p}
}

func Update(track, step int, p instrument.TrackParameters) Event {
	return Event{Type: UpdateStep, Track: track, Step: step, Params: p}
}

func Toggle(track, step int) Event {
	return Event{Type: ToggleStep, Track: track, Step: step}
}

func Activate(track, step int, on bool) Event {
	return Event{Type: SetStepActive, Track: track, Step: step, Value: flag(on)}
}

func Mute(track int, on bool) Event {
	return Event{Type: SetMute, Track: track, Value: flag(on)}
}

func Solo(track int, on bool) Event {
	return Event{Type: SetSolo, Track: track, Value: flag(on)}
}

func BPM(bpm float64) Event {
	return Event{Type: SetBPM, Value: bpm}
}

func BeatsPerBar(n int) Event {
	return Event{Type: SetBeatsPerBar, Value: float64(n)}
}

func Start() Event { return Event{Type: StartClock} }

func Stop() Event { return Event{Type: StopClock} }

func Pause() Event { return Event{Type: PauseClock} }

func Resume() Event { return Event{Type: ResumeClock} }

// Swap installs s in a bank slot. The caller's reference to s moves into
// the event; if the push fails the caller still owns it.
func Swap(slot int, s *sample.Sample) Event {
	return Event{Type: SwapSample, Track: slot, Sample: s}
}

func Reset() Event { return Event{Type: ResetSequencers} }

func Resize(track, steps int) Event {
	return Event{Type: ResizeSequencer, Track: track, Value: float64(steps)}
}

func StepsPerBeat(track, n int) Event {
	return Event{Type: SetStepsPerBeat, Track: track, Value: float64(n)}
}
