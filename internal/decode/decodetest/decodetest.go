// Package decodetest provides in-memory decode streams and WAV fixtures for
// tests.
package decodetest

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/icco/pocketseq/internal/decode"
)

// Stream is a decode.Stream over interleaved stereo samples held in memory.
// It counts Close calls so tests can tell when a resource was freed, and on
// which goroutine path.
type Stream struct {
	mu     sync.Mutex
	rate   int
	data   []int16
	pos    int64
	closed atomic.Int32
}

// NewStream returns a stream of len(data)/2 frames.
func NewStream(rate int, data []int16) *Stream {
	return &Stream{rate: rate, data: data}
}

// NewRamp returns a stream whose left channel counts up from 0 and whose
// right channel counts down from 0, one step per frame.
func NewRamp(rate, frames int) *Stream {
	data := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		data[2*i] = int16(i)
		data[2*i+1] = int16(-i)
	}
	return NewStream(rate, data)
}

// NewConstant returns a stream holding the same value on both channels.
func NewConstant(rate, frames int, v int16) *Stream {
	data := make([]int16, frames*2)
	for i := range data {
		data[i] = v
	}
	return NewStream(rate, data)
}

func (s *Stream) SampleRate() int { return s.rate }

func (s *Stream) Length() int64 { return int64(len(s.data) / 2) }

func (s *Stream) ReadStereo(dst []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.Length() {
		return 0, io.EOF
	}
	n := copy(dst[:len(dst)/2*2], s.data[s.pos*2:]) / 2
	s.pos += int64(n)
	return n, nil
}

func (s *Stream) Seek(frame int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame < 0 || frame > s.Length() {
		return decode.ErrSeekRange
	}
	s.pos = frame
	return nil
}

func (s *Stream) Close() error {
	s.closed.Add(1)
	return nil
}

// Closed returns how many times Close was called.
func (s *Stream) Closed() int { return int(s.closed.Load()) }

// Registry returns a registry whose ".mem" opener hands out streams by path.
// Unknown paths fail with decode.ErrNotValid.
func Registry(streams map[string]*Stream) *decode.Registry {
	r := decode.NewRegistry()
	r.Register(".mem", decode.OpenerFunc(func(path string) (decode.Stream, error) {
		s, ok := streams[path]
		if !ok {
			return nil, decode.ErrNotValid
		}
		return s, nil
	}))
	return r
}

// WriteWAV writes interleaved integer samples as a PCM WAV file.
func WriteWAV(t testing.TB, path string, rate, bitDepth, chans int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Error creating %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, chans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Error writing %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Error closing encoder for %s: %v", path, err)
	}
}
