package audio

import "time"

const (
	SampleRate      = 48000
	Channels        = 2
	BytesPerSample  = 2
	frameMillis     = 20
	FrameDuration   = frameMillis * time.Millisecond
	SamplesPerFrame = SampleRate * frameMillis / 1000 * Channels
	// FrameSize is one 20ms frame of s16le interleaved stereo PCM (3840 bytes).
	FrameSize = SamplesPerFrame * BytesPerSample
)

// Silence returns a newly allocated all-zero frame.
func Silence() []byte {
	return make([]byte, FrameSize)
}

// BytesForDuration converts a playback offset to a frame-aligned byte count.
func BytesForDuration(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	frames := int64(d / FrameDuration)
	return frames * int64(FrameSize)
}
