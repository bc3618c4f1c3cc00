package audio

import "errors"

var (
	// ErrDecodeUnavailable is returned when a source cannot be opened.
	ErrDecodeUnavailable = errors.New("audio: decode unavailable")
	// ErrDecodeExhausted may be returned by a Stream instead of io.EOF at end of stream.
	ErrDecodeExhausted = errors.New("audio: decode exhausted")
	ErrTooManyTracks   = errors.New("audio: too many tracks")
	ErrMixerClosed     = errors.New("audio: mixer closed")
)
