// Package voice provides the per-track sound generators. Every voice owns
// its envelope, renders one buffer at a time into hw frames and never
// allocates while rendering.
package voice

import (
	"math"

	"github.com/icco/pocketseq/internal/envelope"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
)

// headroom keeps a few full-scale voices from clipping the mix.
const headroom = 0.5

// Voice is one instrument's sound generation state.
type Voice interface {
	// Trigger starts a note with p. Parameters for another instrument kind
	// are ignored.
	Trigger(p instrument.TrackParameters)
	// Release moves the envelope to its release stage.
	Release()
	// Stop silences the voice immediately.
	Stop()
	Active() bool
	// Render overwrites dst with the next len(dst) frames.
	Render(dst []hw.Frame)
}

// NoteFreq converts a MIDI note number plus a detune in cents to Hz.
func NoteFreq(note uint8, cents float64) float64 {
	// A4 (note 69) = 440 Hz
	return 440.0 * math.Pow(2.0, (float64(note)-69.0+cents/100)/12.0)
}

func generateWave(w instrument.Waveform, phase, duty float64) float64 {
	switch w {
	case instrument.Square:
		if phase < duty {
			return 0.8
		}
		return -0.8
	case instrument.Sawtooth:
		return 2*phase - 1
	case instrument.Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

func programEnvelope(e *envelope.Envelope, p instrument.EnvelopeParams) {
	e.SetParams(p.AttackMs, p.DecayMs, p.Sustain, p.ReleaseMs, p.DurationMs)
}

func toSample(v float64) int16 {
	v *= headroom * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func mono(v float64) hw.Frame {
	s := toSample(v)
	return hw.Frame{s, s}
}

func silence(dst []hw.Frame) {
	clear(dst)
}
