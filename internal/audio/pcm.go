package audio

import "encoding/binary"

// ScaleFrame multiplies every s16le sample in frame by volume in place.
// Scaled samples are truncated toward zero.
func ScaleFrame(frame []byte, volume float64) {
	if volume == 1 {
		return
	}
	for i := 0; i+1 < len(frame); i += BytesPerSample {
		s := int16(binary.LittleEndian.Uint16(frame[i:]))
		scaled := int16(float64(s) * volume)
		binary.LittleEndian.PutUint16(frame[i:], uint16(scaled))
	}
}

// Accumulate adds the s16le samples of frame into acc.
func Accumulate(acc []int32, frame []byte) {
	n := len(frame) / BytesPerSample
	if n > len(acc) {
		n = len(acc)
	}
	for i := 0; i < n; i++ {
		acc[i] += int32(int16(binary.LittleEndian.Uint16(frame[i*BytesPerSample:])))
	}
}

// EncodeSaturated writes acc as s16le into out, saturating each sum to the
// int16 range.
func EncodeSaturated(out []byte, acc []int32) {
	n := len(out) / BytesPerSample
	if n > len(acc) {
		n = len(acc)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(clampPCM(acc[i])))
	}
}

// MixFrames sums frames sample by sample with saturation. Empty frames are
// skipped; the result is always FrameSize bytes.
func MixFrames(frames ...[]byte) []byte {
	var acc [SamplesPerFrame]int32
	for _, f := range frames {
		Accumulate(acc[:], f)
	}
	out := make([]byte, FrameSize)
	EncodeSaturated(out, acc[:])
	return out
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// IsSilent reports whether every byte in frame is zero.
func IsSilent(frame []byte) bool {
	for _, b := range frame {
		if b != 0 {
			return false
		}
	}
	return true
}
