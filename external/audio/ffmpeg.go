package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
)

const (
	ffmpegStderrLimit = 4096
	ffmpegWaitDelay   = time.Second
)

// FFmpegDecoder transcodes any file or URL ffmpeg understands into raw frames
// by running it as a child process.
type FFmpegDecoder struct {
	path      string
	reconnect bool
}

func NewFFmpegDecoder(path string, reconnect bool) *FFmpegDecoder {
	return &FFmpegDecoder{path: path, reconnect: reconnect}
}

func (d *FFmpegDecoder) args(src audio.Source, opts audio.OpenOptions) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if src.IsRemote() && d.reconnect {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	if opts.StartOffset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(opts.StartOffset.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", src.Location,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"pipe:1",
	)
}

// Open starts ffmpeg and waits for the first frame of output, so a source that
// cannot be decoded fails here rather than on the audio path. ctx bounds that
// wait only; the process lives until the stream is closed.
func (d *FFmpegDecoder) Open(ctx context.Context, src audio.Source, opts audio.OpenOptions) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(src, err)
	}
	if !src.IsRemote() {
		if _, err := os.Stat(src.Location); err != nil {
			return nil, unavailable(src, err)
		}
	}

	cmd := exec.Command(d.path, d.args(src, opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, unavailable(src, err)
	}
	stderr := &limitedBuffer{max: ffmpegStderrLimit}
	cmd.Stderr = stderr
	cmd.WaitDelay = ffmpegWaitDelay
	if err := cmd.Start(); err != nil {
		return nil, unavailable(src, err)
	}

	s := &ffmpegStream{cmd: cmd, stdout: stdout, stderr: stderr}
	head, err := s.peek(ctx)
	if err != nil {
		_ = s.Close()
		return nil, unavailable(src, err)
	}
	s.r = io.MultiReader(bytes.NewReader(head), stdout)
	slog.Debug("ffmpeg stream opened", "source", src.Location, "pid", cmd.Process.Pid)
	return s, nil
}

func unavailable(src audio.Source, err error) error {
	return fmt.Errorf("%w: %s: %v", audio.ErrDecodeUnavailable, src, err)
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer
	r      io.Reader

	waitOnce sync.Once
	waitErr  error

	closeOnce sync.Once
}

type peekResult struct {
	head []byte
	err  error
}

func (s *ffmpegStream) peek(ctx context.Context) ([]byte, error) {
	done := make(chan peekResult, 1)
	go func() {
		buf := make([]byte, audio.FrameSize)
		n, err := io.ReadFull(s.stdout, buf)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
		}
		done <- peekResult{head: buf[:n], err: err}
	}()

	select {
	case <-ctx.Done():
		_ = s.kill()
		_ = s.stdout.Close()
		<-done
		return nil, ctx.Err()
	case res := <-done:
		if len(res.head) > 0 {
			return res.head, nil
		}
		if werr := s.wait(); werr != nil {
			return nil, s.describe(werr)
		}
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return nil, res.err
		}
		return nil, errors.New("ffmpeg produced no audio")
	}
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, s.describe(werr)
		}
	}
	return n, err
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.kill()
		// Unblocks a Read in flight even if a grandchild still holds the pipe.
		_ = s.stdout.Close()
		_ = s.wait()
	})
	return nil
}

func (s *ffmpegStream) kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *ffmpegStream) describe(err error) error {
	msg := strings.TrimSpace(s.stderr.String())
	if msg == "" {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return fmt.Errorf("ffmpeg: %w: %s", err, msg)
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
