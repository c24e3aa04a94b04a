package engine

import "errors"

var (
	ErrNoTracks = errors.New("engine needs at least one track")
	ErrChannels = errors.New("not enough device channels")
)
