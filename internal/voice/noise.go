package voice

import (
	"github.com/icco/pocketseq/internal/envelope"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
)

const lfsrSeed = 0x4ACE

// Noise is a 15-bit linear feedback shift register clocked at a fraction
// or multiple of the sample rate. Short mode feeds back from bit 6, which
// gives a short metallic loop instead of white noise.
type Noise struct {
	env   *envelope.Envelope
	lfsr  uint16
	rate  float64
	acc   float64
	short bool
	amp   float64
}

func NewNoise(sampleRate int) *Noise {
	return &Noise{
		env:  envelope.New(sampleRate),
		lfsr: lfsrSeed,
		rate: 1,
	}
}

func (n *Noise) Trigger(p instrument.TrackParameters) {
	np, ok := p.Instrument.Noise()
	if !ok {
		return
	}
	n.rate = min(max(np.Rate, 1.0/64), 8)
	n.short = np.Short
	n.amp = p.Velocity
	programEnvelope(n.env, p.Env)
	n.env.Trigger()
}

func (n *Noise) Release() { n.env.Release() }

func (n *Noise) Stop() {
	n.env.Reset()
	n.acc = 0
}

func (n *Noise) Active() bool { return n.env.Active() }

func (n *Noise) clock() {
	tap := uint16(1)
	if n.short {
		tap = 6
	}
	bit := (n.lfsr ^ (n.lfsr >> tap)) & 1
	n.lfsr = (n.lfsr >> 1) | (bit << 14)
}

func (n *Noise) Render(dst []hw.Frame) {
	if !n.env.Active() {
		silence(dst)
		return
	}
	for i := range dst {
		n.acc += n.rate
		for n.acc >= 1 {
			n.clock()
			n.acc--
		}
		v := -1.0
		if n.lfsr&1 == 1 {
			v = 1
		}
		dst[i] = mono(v * n.env.Next() * n.amp)
	}
}
