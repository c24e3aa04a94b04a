package hw

import (
	"math"
	"sync"

	"github.com/viterin/vek/vek32"
)

// queueDepth is the number of wavebufs a channel can hold at once.
const queueDepth = 4

type channel struct {
	queue [queueDepth]*WaveBuf
	head  int
	n     int
	pos   int

	gainL, gainR float32
	filter       Biquad
}

// mixer is the channel state shared by every backend. Backends call mix
// from their output goroutine; the engine calls submit and the setters from
// the audio goroutine. The lock is only held for one block of frames.
type mixer struct {
	mu       sync.Mutex
	rate     int
	chans    []channel
	callback func()

	tmpL, tmpR, sq []float32
	levels         []float32
}

func newMixer(sampleRate, channels int) *mixer {
	m := &mixer{
		rate:   sampleRate,
		chans:  make([]channel, channels),
		levels: make([]float32, channels),
	}
	for i := range m.chans {
		m.chans[i].gainL = 1
		m.chans[i].gainR = 1
	}
	return m
}

func (m *mixer) SampleRate() int { return m.rate }

func (m *mixer) Channels() int { return len(m.chans) }

func (m *mixer) Submit(ch int, buf *WaveBuf) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 0 || ch >= len(m.chans) || buf == nil {
		return false
	}
	c := &m.chans[ch]
	if c.n == queueDepth {
		return false
	}
	buf.SetStatus(Queued)
	c.queue[(c.head+c.n)%queueDepth] = buf
	c.n++
	return true
}

func (m *mixer) SetMix(ch int, left, right float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 0 || ch >= len(m.chans) {
		return
	}
	m.chans[ch].gainL = left
	m.chans[ch].gainR = right
}

func (m *mixer) SetFilter(ch int, t FilterType, cutoff, q float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 0 || ch >= len(m.chans) {
		return
	}
	m.chans[ch].filter.Set(t, cutoff, q, m.rate)
}

func (m *mixer) SetCallback(fn func()) {
	m.mu.Lock()
	m.callback = fn
	m.mu.Unlock()
}

func (m *mixer) Levels(dst []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copy(dst, m.levels)
}

// Pending returns the number of buffers queued on a channel.
func (m *mixer) Pending(ch int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch < 0 || ch >= len(m.chans) {
		return 0
	}
	return m.chans[ch].n
}

func (m *mixer) grow(frames int) {
	if cap(m.tmpL) >= frames {
		m.tmpL, m.tmpR, m.sq = m.tmpL[:frames], m.tmpR[:frames], m.sq[:frames]
		return
	}
	m.tmpL = make([]float32, frames)
	m.tmpR = make([]float32, frames)
	m.sq = make([]float32, frames)
}

// mix renders len(outL) frames of every channel into outL and outR. Buffers
// that run out are marked Done and the callback fires once afterwards.
func (m *mixer) mix(outL, outR []float32) {
	frames := len(outL)
	clear(outL)
	clear(outR)

	m.mu.Lock()
	m.grow(frames)
	finished := false
	for i := range m.chans {
		c := &m.chans[i]
		l, r := m.tmpL, m.tmpR
		clear(l)
		clear(r)

		filled := 0
		for filled < frames && c.n > 0 {
			b := c.queue[c.head]
			if b.Status() == Queued {
				b.SetStatus(Playing)
			}
			src := b.Frames[c.pos:]
			k := min(len(src), frames-filled)
			for j := 0; j < k; j++ {
				l[filled+j] = float32(src[j][0]) / 32768
				r[filled+j] = float32(src[j][1]) / 32768
			}
			c.pos += k
			filled += k
			if c.pos >= len(b.Frames) {
				b.SetStatus(Done)
				c.queue[c.head] = nil
				c.head = (c.head + 1) % queueDepth
				c.n--
				c.pos = 0
				finished = true
			}
		}
		if filled == 0 {
			m.levels[i] = 0
			continue
		}

		c.filter.Process(l, r)
		vek32.MulNumber_Inplace(l, c.gainL)
		vek32.MulNumber_Inplace(r, c.gainR)

		vek32.Mul_Into(m.sq, l, l)
		m.levels[i] = float32(math.Sqrt(float64(vek32.Mean(m.sq))))

		vek32.Add_Inplace(outL, l)
		vek32.Add_Inplace(outR, r)
	}
	cb := m.callback
	m.mu.Unlock()

	if finished && cb != nil {
		cb()
	}
}

func clampUnit(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
