package hw

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	otoChannelCount  = 2 // stereo
	otoBytesPerFrame = otoChannelCount * 4
)

// Oto is a Device that plays through the system audio output. The oto
// player pulls mixed audio from Read on its own goroutine.
type Oto struct {
	*mixer

	ctx    *oto.Context
	player *oto.Player
	outL   []float32
	outR   []float32
}

// NewOto opens the audio output. bufferFrames sizes the player's internal
// buffer; only one Oto may exist per process.
func NewOto(sampleRate, channels, bufferFrames int) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: otoChannelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}
	<-readyChan

	o := &Oto{
		mixer: newMixer(sampleRate, channels),
		ctx:   ctx,
		outL:  make([]float32, bufferFrames),
		outR:  make([]float32, bufferFrames),
	}
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	return o, nil
}

// Read implements io.Reader for the oto player.
func (o *Oto) Read(buf []byte) (int, error) {
	frames := len(buf) / otoBytesPerFrame
	if cap(o.outL) < frames {
		o.outL = make([]float32, frames)
		o.outR = make([]float32, frames)
	}
	l, r := o.outL[:frames], o.outR[:frames]
	o.mix(l, r)

	for i := 0; i < frames; i++ {
		idx := i * otoBytesPerFrame
		binary.LittleEndian.PutUint32(buf[idx:], math.Float32bits(clampUnit(l[i])))
		binary.LittleEndian.PutUint32(buf[idx+4:], math.Float32bits(clampUnit(r[i])))
	}
	return frames * otoBytesPerFrame, nil
}

// Close pauses playback and suspends the audio context.
func (o *Oto) Close() error {
	o.player.Pause()
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend audio context: %w", err)
	}
	return nil
}
