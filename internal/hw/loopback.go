package hw

// Loopback is a headless Device. Nothing plays until the caller pulls.
type Loopback struct {
	*mixer

	outL []float32
	outR []float32
}

func NewLoopback(sampleRate, channels int) *Loopback {
	return &Loopback{mixer: newMixer(sampleRate, channels)}
}

// Pull mixes len(dst) frames of the queued audio into dst, exactly as the
// system output would consume them.
func (lb *Loopback) Pull(dst []Frame) {
	n := len(dst)
	if cap(lb.outL) < n {
		lb.outL = make([]float32, n)
		lb.outR = make([]float32, n)
	}
	l, r := lb.outL[:n], lb.outR[:n]
	lb.mix(l, r)
	for i := range dst {
		dst[i][0] = toInt16(l[i])
		dst[i][1] = toInt16(r[i])
	}
}

func (lb *Loopback) Close() error { return nil }

func toInt16(v float32) int16 {
	return int16(clampUnit(v) * 32767)
}
