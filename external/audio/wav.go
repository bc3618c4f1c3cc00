package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/foxseedlab/otomaze/internal/audio"
)

// wavReader is the subset of *wav.Decoder used here.
type wavReader interface {
	IsValidFile() bool
	ReadInfo()
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
	SampleBitDepth() int32
	Err() error
}

var newWAVReader = func(r io.ReadSeeker) wavReader {
	return wav.NewDecoder(r)
}

const wavChunk = 4096

// wavPCM pulls 16-bit samples through go-audio's IntBuffer and re-encodes them
// as s16le bytes.
type wavPCM struct {
	src     wavReader
	buf     *goaudio.IntBuffer
	pending []byte
	eof     bool
}

func newWAVPCM(src wavReader) *wavPCM {
	return &wavPCM{
		src: src,
		buf: &goaudio.IntBuffer{
			Data:   make([]int, wavChunk),
			Format: src.Format(),
		},
	}
}

func (w *wavPCM) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		if w.eof {
			return 0, io.EOF
		}
		n, err := w.src.PCMBuffer(w.buf)
		n = max(0, min(n, len(w.buf.Data)))
		if n > 0 {
			w.pending = intsToPCM(w.buf.Data[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return 0, err
			}
			w.eof = true
		}
		// go-audio/wav reports the end of the data chunk as a zero-length read.
		if n == 0 {
			w.eof = true
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func intsToPCM(samples []int) []byte {
	out := make([]byte, len(samples)*audio.BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

func openWAV(ctx context.Context, path string, opts audio.OpenOptions) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	dec := newWAVReader(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("wav: invalid file: %w", errFormatMismatch)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wav: %w", err)
	}
	format := dec.Format()
	if format == nil || format.SampleRate != audio.SampleRate || format.NumChannels != audio.Channels || dec.SampleBitDepth() != 16 {
		_ = f.Close()
		return nil, fmt.Errorf("wav: %w", errFormatMismatch)
	}
	pcm := newWAVPCM(dec)
	if err := skipBytes(pcm, opts); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wav skip: %w", err)
	}
	return &nativeStream{r: pcm, file: f}, nil
}
