// Package hw is the audio channel device the engine renders into.
//
// A device exposes a fixed number of channels. Each channel plays a queue of
// wavebufs in order, applies its own filter and stereo gains, and reports
// finished buffers through a completion callback. Two backends exist: Oto
// streams to the system audio output, Loopback is pulled by the caller for
// offline rendering and tests.
package hw

import (
	"strings"
	"sync/atomic"
)

// Frame is one interleaved stereo PCM frame.
type Frame [2]int16

// BufStatus is the playback state of a WaveBuf.
type BufStatus int32

const (
	Free BufStatus = iota
	Queued
	Playing
	Done
)

func (s BufStatus) String() string {
	switch s {
	case Free:
		return "Free"
	case Queued:
		return "Queued"
	case Playing:
		return "Playing"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// WaveBuf is a fixed-size PCM buffer handed to a device channel. Its status
// is written by the device and polled by the renderer.
type WaveBuf struct {
	Frames []Frame
	status atomic.Int32
}

// NewWaveBuf allocates a free buffer of n frames.
func NewWaveBuf(n int) *WaveBuf {
	return &WaveBuf{Frames: make([]Frame, n)}
}

func (b *WaveBuf) Status() BufStatus { return BufStatus(b.status.Load()) }

func (b *WaveBuf) SetStatus(s BufStatus) { b.status.Store(int32(s)) }

// Ready reports whether the buffer may be refilled.
func (b *WaveBuf) Ready() bool {
	s := b.Status()
	return s == Free || s == Done
}

// FilterType selects the response of a channel filter.
type FilterType int

const (
	FilterNone FilterType = iota
	FilterLowPass
	FilterHighPass
	FilterBandPass
)

func (t FilterType) String() string {
	switch t {
	case FilterNone:
		return "none"
	case FilterLowPass:
		return "lowpass"
	case FilterHighPass:
		return "highpass"
	case FilterBandPass:
		return "bandpass"
	default:
		return "unknown"
	}
}

// ParseFilterType is the inverse of FilterType.String. Unknown names map to
// FilterNone.
func ParseFilterType(s string) (FilterType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, true
	case "lowpass", "lp":
		return FilterLowPass, true
	case "highpass", "hp":
		return FilterHighPass, true
	case "bandpass", "bp":
		return FilterBandPass, true
	}
	return FilterNone, false
}

// Device is a multi-channel audio output.
type Device interface {
	SampleRate() int
	Channels() int

	// Submit appends buf to the channel's play queue and marks it Queued.
	// It returns false when the channel is out of range or its queue is
	// full.
	Submit(ch int, buf *WaveBuf) bool

	// SetMix sets the left and right gain of a channel.
	SetMix(ch int, left, right float32)

	// SetFilter programs the channel filter. FilterNone bypasses it.
	SetFilter(ch int, t FilterType, cutoff, q float32)

	// SetCallback registers fn to run whenever a buffer finishes. fn must
	// not block.
	SetCallback(fn func())

	// Levels copies the most recent RMS level of each channel into dst.
	Levels(dst []float32) int

	Close() error
}
