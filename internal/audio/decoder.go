package audio

import (
	"context"
	"io"
	"strings"
	"time"
)

// Source describes where a track's audio comes from: a local file path or an
// http(s) URL. The decoder decides how to turn it into PCM.
//
// Start is where the first play begins; loop iterations always restart from
// the beginning.
type Source struct {
	Location string
	Start    time.Duration
}

func (s Source) IsRemote() bool {
	l := strings.ToLower(s.Location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func (s Source) String() string {
	return s.Location
}

type OpenOptions struct {
	StartOffset time.Duration
}

// Stream yields raw frames of s16le 48kHz stereo PCM. Read returns io.EOF (or
// ErrDecodeExhausted) once the source is drained. Close must be idempotent.
type Stream interface {
	io.Reader
	io.Closer
}

// Decoder opens sources into Streams. Open must wrap failures with
// ErrDecodeUnavailable.
type Decoder interface {
	Open(ctx context.Context, src Source, opts OpenOptions) (Stream, error)
}

// Encoder turns one PCM frame into one voice packet.
type Encoder interface {
	Encode(pcm []byte) ([]byte, error)
}

type EncoderFactory func() (Encoder, error)

// MixerFactory builds a Mixer for one voice session. Extra options are applied
// after the configured defaults.
type MixerFactory func(opts ...MixerOption) *Mixer
