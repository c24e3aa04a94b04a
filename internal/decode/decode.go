// Package decode opens audio files as seekable stereo PCM streams. Files
// are decoded completely when opened, so reading and seeking never touch
// the disk.
package decode

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Stream is a decoded audio file. Positions and lengths are in frames; one
// frame is a left and right int16 pair.
type Stream interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Length is the total number of frames.
	Length() int64
	// ReadStereo fills dst with interleaved stereo samples and returns the
	// number of frames written. It returns 0, io.EOF at the end of the
	// stream.
	ReadStereo(dst []int16) (int, error)
	// Seek moves the read position to frame.
	Seek(frame int64) error
	Close() error
}

// Opener opens a file of one format.
type Opener interface {
	Open(path string) (Stream, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Stream, error)

func (f OpenerFunc) Open(path string) (Stream, error) { return f(path) }

// Registry maps file extensions to openers.
type Registry struct {
	mu      sync.Mutex
	openers map[string]Opener
}

func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Default returns a registry for every format this package decodes.
func Default() *Registry {
	r := NewRegistry()
	r.Register(".wav", OpenerFunc(OpenWAV))
	r.Register(".aif", OpenerFunc(OpenAIFF))
	r.Register(".aiff", OpenerFunc(OpenAIFF))
	r.Register(".mp3", OpenerFunc(OpenMP3))
	r.Register(".ogg", OpenerFunc(OpenOgg))
	return r
}

// Register adds or replaces the opener for ext, e.g. ".wav".
func (r *Registry) Register(ext string, o Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[normExt(ext)] = o
}

func (r *Registry) Get(ext string) (Opener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.openers[normExt(ext)]
	return o, ok
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Get(filepath.Ext(path))
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	exts := make([]string, 0, len(r.openers))
	for ext := range r.openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open picks an opener by the extension of path.
func (r *Registry) Open(path string) (Stream, error) {
	ext := filepath.Ext(path)
	o, ok := r.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	s, err := o.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// interleave writes frames of src, which has chans channels, into dst as
// stereo. Mono is duplicated; channels past the second are dropped.
func interleave(dst []int16, src []int, chans int, conv func(int) int16) int {
	frames := len(src) / chans
	for i := 0; i < frames; i++ {
		l := conv(src[i*chans])
		r := l
		if chans > 1 {
			r = conv(src[i*chans+1])
		}
		dst[2*i] = l
		dst[2*i+1] = r
	}
	return frames
}

// pcmScaler returns a converter from integer PCM of the given bit depth to
// int16.
func pcmScaler(bitDepth int) func(int) int16 {
	switch bitDepth {
	case 8:
		return func(v int) int16 { return int16((v - 128) << 8) }
	case 24:
		return func(v int) int16 { return int16(v >> 8) }
	case 32:
		return func(v int) int16 { return int16(v >> 16) }
	default:
		return func(v int) int16 { return int16(v) }
	}
}

func floatToInt16(v float32) int16 {
	if v >= 1 {
		return 32767
	}
	if v <= -1 {
		return -32768
	}
	return int16(v * 32767)
}
