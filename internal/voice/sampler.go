package voice

import (
	"math"

	"github.com/icco/pocketseq/internal/envelope"
	"github.com/icco/pocketseq/internal/hw"
	"github.com/icco/pocketseq/internal/instrument"
	"github.com/icco/pocketseq/internal/sample"
)

// samplerChunk is the number of source frames decoded per read.
const samplerChunk = 1024

// Sampler plays a bank slot at a pitch ratio with linear interpolation.
// Decoded audio is read through a fixed window so rendering never
// allocates.
type Sampler struct {
	rate float64
	bank *sample.Bank
	env  *envelope.Envelope

	src   *sample.Sample
	slot  int
	start int64
	pos   float64
	step  float64
	loop  bool
	amp   float64
	done  bool

	chunk      []int16
	chunkStart int64
	chunkLen   int
}

func NewSampler(sampleRate int, bank *sample.Bank) *Sampler {
	return &Sampler{
		rate:  float64(sampleRate),
		bank:  bank,
		env:   envelope.New(sampleRate),
		chunk: make([]int16, samplerChunk*2),
		done:  true,
	}
}

func (s *Sampler) Trigger(p instrument.TrackParameters) {
	sp, ok := p.Instrument.Sampler()
	if !ok {
		return
	}
	src := s.bank.Get(sp.Slot)
	if src == nil {
		s.Stop()
		return
	}
	if src != s.src {
		s.chunkLen = 0
	}
	s.src = src
	s.slot = sp.Slot
	s.start = min(max(sp.Start, 0), src.Length()-1)
	s.pos = float64(s.start)
	s.step = float64(src.SampleRate()) / s.rate * math.Pow(2, sp.Pitch/12)
	s.loop = sp.Loop
	s.amp = p.Velocity
	s.done = false

	programEnvelope(s.env, p.Env)
	s.env.Trigger()
}

func (s *Sampler) Release() { s.env.Release() }

// Stop silences the voice and drops its sample.
func (s *Sampler) Stop() {
	s.env.Reset()
	s.src = nil
	s.chunkLen = 0
	s.done = true
}

// Detach stops the voice if it is playing src. The engine calls it before
// retiring a sample that was swapped out of the bank.
func (s *Sampler) Detach(src *sample.Sample) {
	if src != nil && s.src == src {
		s.Stop()
	}
}

func (s *Sampler) Active() bool { return !s.done && s.env.Active() }

// Slot returns the bank slot of the last triggered sample.
func (s *Sampler) Slot() int { return s.slot }

// window makes frames idx and idx+1 available in the decode window. When
// playback runs off the end of the window the last decoded frame is kept,
// so the stream is read sequentially instead of seeking back one frame.
func (s *Sampler) window(idx, length int64) bool {
	end := s.chunkStart + int64(s.chunkLen)
	need := min(idx+1, length-1)
	if idx >= s.chunkStart && need < end {
		return true
	}
	if s.chunkLen > 0 && idx == end-1 {
		copy(s.chunk[:2], s.chunk[(s.chunkLen-1)*2:s.chunkLen*2])
		n, _ := s.src.ReadAt(end, s.chunk[2:])
		s.chunkStart, s.chunkLen = idx, n+1
		return true
	}
	n, _ := s.src.ReadAt(idx, s.chunk)
	s.chunkStart, s.chunkLen = idx, n
	return n > 0
}

func (s *Sampler) at(idx int64) (l, r float64) {
	off := int(idx-s.chunkStart) * 2
	return float64(s.chunk[off]) / 32768, float64(s.chunk[off+1]) / 32768
}

func (s *Sampler) Render(dst []hw.Frame) {
	if !s.Active() {
		silence(dst)
		return
	}
	length := s.src.Length()
	for i := range dst {
		e := s.env.Next()
		if s.done {
			dst[i] = hw.Frame{}
			continue
		}

		idx := int64(s.pos)
		if !s.window(idx, length) {
			s.done = true
			dst[i] = hw.Frame{}
			continue
		}
		frac := s.pos - float64(idx)
		l0, r0 := s.at(idx)
		l1, r1 := l0, r0
		if idx+1 < s.chunkStart+int64(s.chunkLen) {
			l1, r1 = s.at(idx + 1)
		}

		g := e * s.amp
		dst[i] = hw.Frame{
			toSample((l0 + (l1-l0)*frac) * g),
			toSample((r0 + (r1-r0)*frac) * g),
		}

		s.pos += s.step
		if s.pos >= float64(length) {
			if s.loop && length > s.start {
				s.pos = float64(s.start) + math.Mod(s.pos-float64(length), float64(length-s.start))
			} else {
				s.done = true
			}
		}
	}
}
