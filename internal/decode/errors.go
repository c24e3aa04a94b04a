package decode

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNotValid          = errors.New("not a valid audio file")
	ErrNoAudio           = errors.New("file contains no audio")
	ErrSeekRange         = errors.New("seek position out of range")
)
