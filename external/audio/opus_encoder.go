//go:build opus

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/hraban/opus"

	"github.com/foxseedlab/otomaze/internal/audio"
)

// maxOpusPacket is the largest packet libopus produces for one frame.
const maxOpusPacket = 4000

// OpusEncoder turns mixed PCM frames into Opus packets for the voice gateway.
type OpusEncoder struct {
	enc *opus.Encoder
	pcm []int16
	buf []byte
}

func NewOpusEncoder(bitrate int) (audio.Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("set opus bitrate: %w", err)
		}
	}
	return &OpusEncoder{
		enc: enc,
		pcm: make([]int16, audio.SamplesPerFrame),
		buf: make([]byte, maxOpusPacket),
	}, nil
}

func (e *OpusEncoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm) != audio.FrameSize {
		return nil, fmt.Errorf("opus encode: frame is %d bytes, want %d", len(pcm), audio.FrameSize)
	}
	for i := range e.pcm {
		e.pcm[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	n, err := e.enc.Encode(e.pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	packet := make([]byte, n)
	copy(packet, e.buf[:n])
	return packet, nil
}
