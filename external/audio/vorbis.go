package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/jfreymuth/oggvorbis"
)

// oggReader is the subset of *oggvorbis.Reader used here.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read(p []float32) (int, error)
}

var newOggReader = func(r io.Reader) (oggReader, error) {
	return oggvorbis.NewReader(r)
}

const vorbisChunk = 4096

// vorbisPCM converts interleaved float samples into s16le bytes.
type vorbisPCM struct {
	src     oggReader
	floats  []float32
	pending []byte
	err     error
}

func newVorbisPCM(src oggReader) *vorbisPCM {
	return &vorbisPCM{
		src:    src,
		floats: make([]float32, vorbisChunk),
	}
}

func (v *vorbisPCM) Read(p []byte) (int, error) {
	for len(v.pending) == 0 {
		if v.err != nil {
			return 0, v.err
		}
		n, err := v.src.Read(v.floats)
		if n > 0 {
			v.pending = floatsToPCM(v.floats[:n])
		}
		if err != nil {
			v.err = err
		}
		if n == 0 && err == nil {
			return 0, nil
		}
	}
	n := copy(p, v.pending)
	v.pending = v.pending[n:]
	return n, nil
}

func floatsToPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*audio.BytesPerSample)
	for i, f := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToSample(f)))
	}
	return out
}

// floatToSample truncates toward zero after clamping to [-1, 1].
func floatToSample(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}

func openVorbis(ctx context.Context, path string, opts audio.OpenOptions) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := newOggReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	if dec.SampleRate() != audio.SampleRate || dec.Channels() != audio.Channels {
		_ = f.Close()
		return nil, fmt.Errorf("vorbis: %d Hz %d ch: %w", dec.SampleRate(), dec.Channels(), errFormatMismatch)
	}
	pcm := newVorbisPCM(dec)
	if err := skipBytes(pcm, opts); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("vorbis skip: %w", err)
	}
	return &nativeStream{r: pcm, file: f}, nil
}
