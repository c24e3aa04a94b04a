package pattern

import "errors"

var (
	// ErrTimeFormat is returned for files timed in SMPTE frames instead of
	// ticks per quarter note.
	ErrTimeFormat = errors.New("pattern: unsupported time format")

	ErrTooManyTracks = errors.New("pattern: more tracks than MIDI channels")

	ErrResolution = errors.New("pattern: invalid steps per beat")
)
