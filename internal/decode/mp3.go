package decode

import (
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always decodes to 16-bit little-endian stereo.
const mp3BytesPerFrame = 4

// OpenMP3 decodes an MPEG-1/2 layer 3 file into memory.
func OpenMP3(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotValid, err)
	}
	if dec.Length() <= 0 {
		return nil, ErrNoAudio
	}

	raw := make([]byte, dec.Length())
	n, err := io.ReadFull(dec, raw)
	if err != nil && !isEOF(err) {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	frames := n / mp3BytesPerFrame
	if frames == 0 {
		return nil, ErrNoAudio
	}

	s := &memStream{rate: dec.SampleRate(), data: make([]int16, frames*2)}
	for i := range s.data {
		s.data[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return s, nil
}
