package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/foxseedlab/otomaze/internal/audio"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// mp3Reader is the subset of *gomp3.Decoder used here.
type mp3Reader interface {
	io.ReadSeeker
	SampleRate() int
}

var newMP3Reader = func(r io.Reader) (mp3Reader, error) {
	return gomp3.NewDecoder(r)
}

// openMP3 decodes an MP3 file natively. go-mp3 always yields 16-bit stereo, so
// only the sample rate has to match.
func openMP3(ctx context.Context, path string, opts audio.OpenOptions) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := newMP3Reader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mp3: %w", err)
	}
	if dec.SampleRate() != audio.SampleRate {
		_ = f.Close()
		return nil, fmt.Errorf("mp3: %d Hz: %w", dec.SampleRate(), errFormatMismatch)
	}
	if off := audio.BytesForDuration(opts.StartOffset); off > 0 {
		if _, err := dec.Seek(off, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mp3 seek: %w", err)
		}
	}
	return &nativeStream{r: dec, file: f}, nil
}
