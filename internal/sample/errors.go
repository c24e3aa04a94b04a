package sample

import "errors"

var (
	ErrReleased = errors.New("sample already released")
	ErrClosed   = errors.New("sample stream closed")
	ErrSlot     = errors.New("sample slot out of range")
)
