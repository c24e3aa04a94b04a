// Package instrument defines the per-step parameter records carried by
// sequencer steps and events.
package instrument

import (
	"fmt"
	"strings"

	"github.com/icco/pocketseq/internal/hw"
)

// Kind selects the voice renderer of a track.
type Kind int

const (
	Synth Kind = iota
	Sampler
	FM
	Noise
)

func (k Kind) String() string {
	switch k {
	case Synth:
		return "synth"
	case Sampler:
		return "sampler"
	case FM:
		return "fm"
	case Noise:
		return "noise"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "synth":
		return Synth, nil
	case "sampler", "sample":
		return Sampler, nil
	case "fm":
		return FM, nil
	case "noise":
		return Noise, nil
	}
	return Synth, fmt.Errorf("unknown instrument %q", s)
}

// Waveform represents different oscillator wave shapes
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	default:
		return "unknown"
	}
}

func ParseWaveform(s string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sine", "":
		return Sine, nil
	case "square", "pulse":
		return Square, nil
	case "sawtooth", "saw":
		return Sawtooth, nil
	case "triangle", "tri":
		return Triangle, nil
	}
	return Sine, fmt.Errorf("unknown waveform %q", s)
}

// EnvelopeParams are the envelope durations in milliseconds and the sustain
// level in [0, 1]. DurationMs is how long the sustain stage holds.
type EnvelopeParams struct {
	AttackMs   float64
	DecayMs    float64
	Sustain    float64
	ReleaseMs  float64
	DurationMs float64
}

// SynthParams drive the subtractive oscillator voice.
type SynthParams struct {
	Waveform Waveform
	Note     uint8   // MIDI note number
	Fine     float64 // cents
	Duty     float64 // square wave duty cycle
}

// SamplerParams drive the sample playback voice.
type SamplerParams struct {
	Slot  int     // sample bank slot
	Start int64   // first frame
	Pitch float64 // semitones relative to the native rate
	Loop  bool
}

// FMParams drive the two-operator FM voice.
type FMParams struct {
	Note   uint8
	Ratio  float64 // modulator to carrier frequency ratio
	Index  float64 // modulation depth in radians
	ModEnv EnvelopeParams
}

// NoiseParams drive the LFSR noise voice.
type NoiseParams struct {
	Rate  float64 // LFSR clocks per output sample
	Short bool    // short-period (metallic) mode
}

// Variant holds the parameters of exactly one instrument kind. Only the
// accessor matching Kind reports ok.
type Variant struct {
	kind    Kind
	synth   SynthParams
	sampler SamplerParams
	fm      FMParams
	noise   NoiseParams
}

func SynthVariant(p SynthParams) Variant { return Variant{kind: Synth, synth: p} }

func SamplerVariant(p SamplerParams) Variant { return Variant{kind: Sampler, sampler: p} }

func FMVariant(p FMParams) Variant { return Variant{kind: FM, fm: p} }

func NoiseVariant(p NoiseParams) Variant { return Variant{kind: Noise, noise: p} }

func (v Variant) Kind() Kind { return v.kind }

func (v Variant) Synth() (SynthParams, bool) { return v.synth, v.kind == Synth }

func (v Variant) Sampler() (SamplerParams, bool) { return v.sampler, v.kind == Sampler }

func (v Variant) FM() (FMParams, bool) { return v.fm, v.kind == FM }

func (v Variant) Noise() (NoiseParams, bool) { return v.noise, v.kind == Noise }

// DefaultVariant returns usable parameters for kind.
func DefaultVariant(kind Kind) Variant {
	switch kind {
	case Sampler:
		return SamplerVariant(SamplerParams{})
	case FM:
		return FMVariant(FMParams{
			Note:   48,
			Ratio:  2,
			Index:  3,
			ModEnv: EnvelopeParams{AttackMs: 1, DecayMs: 80, Sustain: 0.2, ReleaseMs: 60, DurationMs: 60},
		})
	case Noise:
		return NoiseVariant(NoiseParams{Rate: 1})
	default:
		return SynthVariant(SynthParams{Waveform: Sawtooth, Note: 60, Duty: 0.5})
	}
}

// TrackParameters is the full sound of one step: mix, filter, envelope and
// the instrument variant.
type TrackParameters struct {
	Volume   float64 // [0, 1]
	Pan      float64 // [-1, 1]
	Velocity float64 // [0, 1]

	Filter hw.FilterType
	Cutoff float64 // Hz
	Q      float64

	Env        EnvelopeParams
	Instrument Variant
}

// Default returns the parameters a fresh step of kind starts with.
func Default(kind Kind) TrackParameters {
	return TrackParameters{
		Volume:     0.8,
		Velocity:   1,
		Cutoff:     8000,
		Q:          0.707,
		Env:        EnvelopeParams{AttackMs: 2, DecayMs: 60, Sustain: 0.6, ReleaseMs: 120, DurationMs: 80},
		Instrument: DefaultVariant(kind),
	}
}

// Clamped returns a copy with every field forced into its valid range.
func (p TrackParameters) Clamped() TrackParameters {
	p.Volume = clamp(p.Volume, 0, 1)
	p.Pan = clamp(p.Pan, -1, 1)
	p.Velocity = clamp(p.Velocity, 0, 1)
	p.Cutoff = clamp(p.Cutoff, 20, 20000)
	p.Q = clamp(p.Q, 0.1, 20)
	p.Env.AttackMs = clamp(p.Env.AttackMs, 0, 10000)
	p.Env.DecayMs = clamp(p.Env.DecayMs, 0, 10000)
	p.Env.Sustain = clamp(p.Env.Sustain, 0, 1)
	p.Env.ReleaseMs = clamp(p.Env.ReleaseMs, 0, 10000)
	p.Env.DurationMs = clamp(p.Env.DurationMs, 0, 10000)
	return p
}

// Gains returns the left and right channel gains for the volume and pan.
func (p TrackParameters) Gains() (left, right float32) {
	vol := clamp(p.Volume, 0, 1)
	pan := clamp(p.Pan, -1, 1)
	return float32(vol * min(1, 1-pan)), float32(vol * min(1, 1+pan))
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number, with C4 = 60.
func NoteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note/12)-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
