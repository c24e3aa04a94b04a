package decode

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// OpenOgg decodes an Ogg Vorbis file into memory.
func OpenOgg(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotValid, err)
	}
	chans := dec.Channels()
	if dec.Length() <= 0 || chans < 1 {
		return nil, ErrNoAudio
	}

	s := &memStream{rate: dec.SampleRate(), data: make([]int16, 0, dec.Length()*2)}
	buf := make([]float32, chunkFrames*chans)
	for {
		// Read returns the number of values, always a multiple of the
		// channel count.
		n, err := dec.Read(buf)
		for i := 0; i < n/chans; i++ {
			l := floatToInt16(buf[i*chans])
			r := l
			if chans > 1 {
				r = floatToInt16(buf[i*chans+1])
			}
			s.data = append(s.data, l, r)
		}
		if err != nil && !isEOF(err) {
			return nil, fmt.Errorf("decoding: %w", err)
		}
		if n == 0 || err != nil {
			break
		}
	}
	if len(s.data) == 0 {
		return nil, ErrNoAudio
	}
	return s, nil
}
