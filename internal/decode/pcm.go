package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const chunkFrames = 4096

// pcmDecoder is the part of the go-audio wav and aiff decoders we use.
type pcmDecoder interface {
	Format() *audio.Format
	PCMBuffer(buf *audio.IntBuffer) (int, error)
}

// newPCMDecoder validates the header at the start of r and returns a decoder
// positioned before the first frame, plus the bit depth of the samples.
type newPCMDecoder func(r io.ReadSeeker) (dec pcmDecoder, bitDepth int, err error)

func newWAVDecoder(r io.ReadSeeker) (pcmDecoder, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrNotValid
	}
	d.ReadInfo()
	// 1 is integer PCM, 0xFFFE the extensible header used for >16 bit.
	if d.WavAudioFormat != 1 && d.WavAudioFormat != 0xFFFE {
		return nil, 0, fmt.Errorf("wav format %#x: %w", d.WavAudioFormat, ErrUnsupportedFormat)
	}
	return d, int(d.BitDepth), nil
}

func newAIFFDecoder(r io.ReadSeeker) (pcmDecoder, int, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrNotValid
	}
	d.ReadInfo()
	return d, int(d.BitDepth), nil
}

// OpenWAV opens an integer PCM WAV file.
func OpenWAV(path string) (Stream, error) {
	return openPCM(path, newWAVDecoder, pcmScaler)
}

// OpenAIFF opens an AIFF file.
func OpenAIFF(path string) (Stream, error) {
	return openPCM(path, newAIFFDecoder, func(depth int) func(int) int16 {
		if depth == 8 {
			// AIFF stores 8-bit samples signed, WAV unsigned.
			return func(v int) int16 { return int16(v << 8) }
		}
		return pcmScaler(depth)
	})
}

// openPCM decodes a whole go-audio wav or aiff file into memory.
func openPCM(path string, newDec newPCMDecoder, scaler func(int) func(int) int16) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, depth, err := newDec(f)
	if err != nil {
		return nil, err
	}
	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, ErrNotValid
	}

	chans := format.NumChannels
	conv := scaler(depth)
	buf := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, chunkFrames*chans),
		SourceBitDepth: depth,
	}
	s := &memStream{rate: format.SampleRate}
	for {
		n, err := dec.PCMBuffer(buf)
		if frames := n / chans; frames > 0 {
			off := len(s.data)
			s.data = append(s.data, make([]int16, frames*2)...)
			interleave(s.data[off:], buf.Data[:frames*chans], chans, conv)
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

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
