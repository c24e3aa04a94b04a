package voice

import (
	"github.com/icco/pocketseq/internal/envelope"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
)

// Oscillator is the subtractive synth voice: one waveform oscillator shaped
// by the amplitude envelope. Filtering happens on the device channel.
type Oscillator struct {
	rate float64
	env  *envelope.Envelope

	wave  instrument.Waveform
	freq  float64
	phase float64
	duty  float64
	amp   float64
}

func NewOscillator(sampleRate int) *Oscillator {
	return &Oscillator{
		rate: float64(sampleRate),
		env:  envelope.New(sampleRate),
		duty: 0.5,
	}
}

func (o *Oscillator) Trigger(p instrument.TrackParameters) {
	sp, ok := p.Instrument.Synth()
	if !ok {
		return
	}
	o.wave = sp.Waveform
	o.freq = NoteFreq(sp.Note, sp.Fine)
	o.duty = sp.Duty
	if o.duty <= 0 || o.duty >= 1 {
		o.duty = 0.5
	}
	o.amp = p.Velocity
	programEnvelope(o.env, p.Env)
	o.env.Trigger()
}

func (o *Oscillator) Release() { o.env.Release() }

func (o *Oscillator) Stop() {
	o.env.Reset()
	o.phase = 0
}

func (o *Oscillator) Active() bool { return o.env.Active() }

func (o *Oscillator) Render(dst []hw.Frame) {
	if !o.env.Active() {
		silence(dst)
		return
	}
	inc := o.freq / o.rate
	for i := range dst {
		e := o.env.Next()
		dst[i] = mono(generateWave(o.wave, o.phase, o.duty) * e * o.amp)
		o.phase += inc
		if o.phase >= 1.0 {
			o.phase -= 1.0
		}
	}
}
