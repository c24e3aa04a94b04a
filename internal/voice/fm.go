package voice

import (
	"math"

	"github.com/icco/pocketseq/internal/envelope"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
)

// FM is a two-operator phase modulation voice. The modulator has its own
// envelope so the timbre can decay independently of the amplitude.
type FM struct {
	rate   float64
	env    *envelope.Envelope
	modEnv *envelope.Envelope

	carrierInc float64
	modInc     float64
	carrier    float64
	mod        float64
	index      float64
	amp        float64
}

func NewFM(sampleRate int) *FM {
	return &FM{
		rate:   float64(sampleRate),
		env:    envelope.New(sampleRate),
		modEnv: envelope.New(sampleRate),
	}
}

func (f *FM) Trigger(p instrument.TrackParameters) {
	fp, ok := p.Instrument.FM()
	if !ok {
		return
	}
	freq := NoteFreq(fp.Note, 0)
	f.carrierInc = freq / f.rate
	f.modInc = freq * max(fp.Ratio, 0) / f.rate
	f.index = max(fp.Index, 0)
	f.amp = p.Velocity
	f.carrier, f.mod = 0, 0

	programEnvelope(f.env, p.Env)
	programEnvelope(f.modEnv, fp.ModEnv)
	f.env.Trigger()
	f.modEnv.Trigger()
}

func (f *FM) Release() {
	f.env.Release()
	f.modEnv.Release()
}

func (f *FM) Stop() {
	f.env.Reset()
	f.modEnv.Reset()
}

func (f *FM) Active() bool { return f.env.Active() }

func (f *FM) Render(dst []hw.Frame) {
	if !f.env.Active() {
		silence(dst)
		return
	}
	for i := range dst {
		m := math.Sin(2*math.Pi*f.mod) * f.index * f.modEnv.Next()
		v := math.Sin(2*math.Pi*f.carrier + m)
		dst[i] = mono(v * f.env.Next() * f.amp)

		f.carrier += f.carrierInc
		f.carrier -= math.Floor(f.carrier)
		f.mod += f.modInc
		f.mod -= math.Floor(f.mod)
	}
}
