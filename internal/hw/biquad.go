package hw

import "math"

// Biquad is a stereo second-order filter using the RBJ cookbook
// coefficients, run in transposed direct form II.
type Biquad struct {
	typ FilterType

	b0, b1, b2 float32
	a1, a2     float32

	z1, z2 [2]float32
}

// Set recomputes the coefficients. The filter state is kept so that a
// sweep does not click.
func (f *Biquad) Set(t FilterType, cutoff, q float32, sampleRate int) {
	f.typ = t
	if t == FilterNone || sampleRate <= 0 {
		f.typ = FilterNone
		return
	}

	nyquist := float64(sampleRate) / 2
	fc := math.Min(math.Max(float64(cutoff), 10), nyquist*0.9)
	qq := math.Max(float64(q), 0.1)

	w0 := 2 * math.Pi * fc / float64(sampleRate)
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * qq)

	var b0, b1, b2 float64
	switch t {
	case FilterLowPass:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	case FilterHighPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	case FilterBandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}
	a0 := 1 + alpha
	f.b0 = float32(b0 / a0)
	f.b1 = float32(b1 / a0)
	f.b2 = float32(b2 / a0)
	f.a1 = float32(-2 * cosw / a0)
	f.a2 = float32((1 - alpha) / a0)
}

// Type returns the active response.
func (f *Biquad) Type() FilterType { return f.typ }

// Reset clears the delay line.
func (f *Biquad) Reset() {
	f.z1 = [2]float32{}
	f.z2 = [2]float32{}
}

// Process filters left and right in place.
func (f *Biquad) Process(left, right []float32) {
	if f.typ == FilterNone {
		return
	}
	f.run(0, left)
	f.run(1, right)
}

func (f *Biquad) run(c int, x []float32) {
	z1, z2 := f.z1[c], f.z2[c]
	for i, in := range x {
		out := f.b0*in + z1
		z1 = f.b1*in - f.a1*out + z2
		z2 = f.b2*in - f.a2*out
		x[i] = out
	}
	f.z1[c], f.z2[c] = z1, z2
}
