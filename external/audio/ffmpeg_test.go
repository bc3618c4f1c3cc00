package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
)

func TestFFmpegArgs_LocalFile(t *testing.T) {
	d := NewFFmpegDecoder("ffmpeg", true)
	args := d.args(audio.Source{Location: "/srv/audio/bgm.flac"}, audio.OpenOptions{})

	if slices.Contains(args, "-reconnect") {
		t.Fatalf("reconnect flags must not be set for local files: %v", args)
	}
	if slices.Contains(args, "-ss") {
		t.Fatalf("unexpected seek flag: %v", args)
	}
	want := "-i /srv/audio/bgm.flac -vn -f s16le -ar 48000 -ac 2 pipe:1"
	if got := strings.Join(args, " "); !strings.HasSuffix(got, want) {
		t.Fatalf("expected args to end with %q, got %q", want, got)
	}
}

func TestFFmpegArgs_RemoteWithOffset(t *testing.T) {
	d := NewFFmpegDecoder("ffmpeg", true)
	args := d.args(audio.Source{Location: "https://example.com/live.mp3"}, audio.OpenOptions{StartOffset: 1500 * time.Millisecond})

	got := strings.Join(args, " ")
	if !strings.Contains(got, "-reconnect 1 -reconnect_streamed 1") {
		t.Fatalf("expected reconnect flags, got %q", got)
	}
	if !strings.Contains(got, "-ss 1.500 -i https://example.com/live.mp3") {
		t.Fatalf("expected seek before input, got %q", got)
	}
}

func TestFFmpegArgs_ReconnectDisabled(t *testing.T) {
	d := NewFFmpegDecoder("ffmpeg", false)
	args := d.args(audio.Source{Location: "https://example.com/live.mp3"}, audio.OpenOptions{})

	if slices.Contains(args, "-reconnect") {
		t.Fatalf("unexpected reconnect flags: %v", args)
	}
}

func TestFFmpegOpen_MissingFile(t *testing.T) {
	d := NewFFmpegDecoder("ffmpeg", false)
	_, err := d.Open(context.Background(), audio.Source{Location: filepath.Join(t.TempDir(), "missing.mp3")}, audio.OpenOptions{})
	if !errors.Is(err, audio.ErrDecodeUnavailable) {
		t.Fatalf("expected ErrDecodeUnavailable, got %v", err)
	}
}

func TestFFmpegOpen_MissingBinary(t *testing.T) {
	src := touch(t, "a.mp3")
	d := NewFFmpegDecoder(filepath.Join(t.TempDir(), "no-such-ffmpeg"), false)
	_, err := d.Open(context.Background(), audio.Source{Location: src}, audio.OpenOptions{})
	if !errors.Is(err, audio.ErrDecodeUnavailable) {
		t.Fatalf("expected ErrDecodeUnavailable, got %v", err)
	}
}

func TestFFmpegOpen_StreamsProcessOutput(t *testing.T) {
	bin := fakeFFmpeg(t, "head -c 10000 /dev/zero")
	d := NewFFmpegDecoder(bin, false)

	stream, err := d.Open(context.Background(), audio.Source{Location: touch(t, "a.mp3")}, audio.OpenOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if len(got) != 10000 {
		t.Fatalf("expected 10000 bytes, got %d", len(got))
	}
}

func TestFFmpegOpen_FailsWhenProcessProducesNothing(t *testing.T) {
	bin := fakeFFmpeg(t, "echo 'Invalid data found when processing input' >&2; exit 1")
	d := NewFFmpegDecoder(bin, false)

	_, err := d.Open(context.Background(), audio.Source{Location: touch(t, "a.mp3")}, audio.OpenOptions{})
	if !errors.Is(err, audio.ErrDecodeUnavailable) {
		t.Fatalf("expected ErrDecodeUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFFmpegOpen_ContextBoundsStartup(t *testing.T) {
	bin := fakeFFmpeg(t, "exec sleep 5")
	d := NewFFmpegDecoder(bin, false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := d.Open(ctx, audio.Source{Location: touch(t, "a.mp3")}, audio.OpenOptions{})
	if !errors.Is(err, audio.ErrDecodeUnavailable) {
		t.Fatalf("expected ErrDecodeUnavailable, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Fatalf("open was not bounded by context: %v", elapsed)
	}
}

func TestFFmpegStream_CloseStopsProcess(t *testing.T) {
	bin := fakeFFmpeg(t, "exec cat /dev/zero")
	d := NewFFmpegDecoder(bin, false)

	stream, err := d.Open(context.Background(), audio.Source{Location: touch(t, "a.mp3")}, audio.OpenOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := make([]byte, audio.FrameSize)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = stream.Close()
		_ = stream.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("close did not return")
	}
}

func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	body := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}
	return path
}

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return path
}
