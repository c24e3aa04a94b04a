package decode

import "io"

// memStream serves a fully decoded file from memory. Seeking only moves an
// index, so a sampler can retrigger from the audio goroutine.
type memStream struct {
	rate int
	data []int16 // interleaved stereo
	pos  int64
}

func (s *memStream) SampleRate() int { return s.rate }

func (s *memStream) Length() int64 { return int64(len(s.data) / 2) }

func (s *memStream) ReadStereo(dst []int16) (int, error) {
	if s.pos >= s.Length() {
		return 0, io.EOF
	}
	n := copy(dst[:len(dst)&^1], s.data[s.pos*2:]) / 2
	s.pos += int64(n)
	return n, nil
}

func (s *memStream) Seek(frame int64) error {
	if frame < 0 || frame > s.Length() {
		return ErrSeekRange
	}
	s.pos = frame
	return nil
}

func (s *memStream) Close() error {
	s.data = nil
	s.pos = 0
	return nil
}
