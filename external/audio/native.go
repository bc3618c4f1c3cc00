package audio

import (
	"io"
	"os"
	"sync"

	"github.com/foxseedlab/otomaze/internal/audio"
)

// nativeStream adapts a format decoder reading from an open file to
// audio.Stream. Closing it closes the file.
type nativeStream struct {
	r    io.Reader
	file io.Closer
	once sync.Once
	err  error
}

func (s *nativeStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *nativeStream) Close() error {
	s.once.Do(func() {
		s.err = s.file.Close()
	})
	return s.err
}

// skipBytes discards the frame-aligned byte count matching an OpenOptions
// start offset. Reaching the end early is not an error; the stream is then
// simply exhausted.
func skipBytes(r io.Reader, opts audio.OpenOptions) error {
	n := audio.BytesForDuration(opts.StartOffset)
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF {
		return nil
	}
	return err
}

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}
