// Package sample holds decoded audio files shared between tracks.
//
// A Sample is reference counted. Non-real-time code drops its reference with
// Release, which closes the stream when the count reaches zero. The audio
// goroutine must never close a stream, so it uses ReleaseDeferred, which
// hands the last reference to a retire queue drained elsewhere.
package sample

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/icco/pocketseq/internal/decode"
)

// Retirer receives samples whose last reference was dropped on the audio
// goroutine. Push must not block.
type Retirer interface {
	Push(s *Sample) bool
}

// Sample is a reference-counted decoded audio file.
type Sample struct {
	path   string
	length int64
	rate   int

	mu     sync.Mutex
	stream decode.Stream
	refs   int
	cursor int64
}

// Create opens path through the registry and returns a sample holding one
// reference.
func Create(reg *decode.Registry, path string) (*Sample, error) {
	st, err := reg.Open(path)
	if err != nil {
		return nil, err
	}
	if st.Length() <= 0 {
		st.Close()
		return nil, fmt.Errorf("%s: %w", path, decode.ErrNoAudio)
	}
	return &Sample{
		path:   path,
		length: st.Length(),
		rate:   st.SampleRate(),
		stream: st,
		refs:   1,
	}, nil
}

func (s *Sample) Path() string { return s.path }

func (s *Sample) Name() string { return filepath.Base(s.path) }

// Length is the total number of frames.
func (s *Sample) Length() int64 { return s.length }

func (s *Sample) SampleRate() int { return s.rate }

// Refs returns the current reference count.
func (s *Sample) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Retain adds a reference.
func (s *Sample) Retain() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release drops a reference and closes the stream when it was the last one.
// It may block on I/O and must not be called from the audio goroutine.
func (s *Sample) Release() error {
	s.mu.Lock()
	if s.refs <= 0 {
		s.mu.Unlock()
		return ErrReleased
	}
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()

	if last {
		return s.Close()
	}
	return nil
}

// ReleaseDeferred drops a reference from the audio goroutine. When it was
// the last one the sample is pushed to sink instead of being closed. If sink
// is full the reference is restored and false is returned; the caller keeps
// the sample and retries later.
func (s *Sample) ReleaseDeferred(sink Retirer) bool {
	s.mu.Lock()
	if s.refs <= 0 {
		s.mu.Unlock()
		return true
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	if sink.Push(s) {
		return true
	}

	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return false
}

// Close closes the underlying stream. It is called by Release, or by the
// goroutine that drains the retire queue.
func (s *Sample) Close() error {
	s.mu.Lock()
	st := s.stream
	s.stream = nil
	s.mu.Unlock()

	if st == nil {
		return nil
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// ReadAt reads interleaved stereo frames starting at frame into dst and
// returns the number of frames read. Concurrent readers are serialized; the
// stream only seeks when frame is not where the previous read ended.
func (s *Sample) ReadAt(frame int64, dst []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return 0, ErrClosed
	}
	if frame < 0 || frame >= s.length {
		return 0, io.EOF
	}
	if frame != s.cursor {
		if err := s.stream.Seek(frame); err != nil {
			return 0, err
		}
		s.cursor = frame
	}
	n, err := s.stream.ReadStereo(dst)
	s.cursor += int64(n)
	return n, err
}
