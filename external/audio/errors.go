package audio

import "errors"

var (
	ErrOpusUnavailable = errors.New("opus encoder is not available in this build")
	errFormatMismatch  = errors.New("source is not 48kHz stereo 16-bit")
	errOutsideBaseDir  = errors.New("source path is outside the audio source directory")
)
