package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type TrackID string

// Metadata is an opaque bag carried alongside a track. The mixer never reads it.
type Metadata map[string]any

// Track wraps one decoder stream and turns it into a continuous frame stream
// with volume, pause and loop handling.
//
// Volume, loop and paused are written by control-plane goroutines and read by
// the audio path through atomics. readMu serializes Read and is held across
// stream I/O; mu only guards the stream handles and is never held across I/O,
// so Cleanup can close a stream that a Read is blocked on.
type Track struct {
	id       TrackID
	source   Source
	metadata Metadata
	addedAt  time.Time
	seq      uint64

	decoder       Decoder
	preopen       bool
	reopenTimeout time.Duration

	volume   *AtomicFloat64
	loop     atomic.Bool
	paused   atomic.Bool
	finished atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	readMu sync.Mutex

	mu         sync.Mutex
	stream     Stream
	spare      Stream
	preopening bool
	closed     bool
}

type trackConfig struct {
	preopen       bool
	reopenTimeout time.Duration
}

func newTrack(ctx context.Context, id TrackID, dec Decoder, src Source, volume float64, loop bool, metadata Metadata, cfg trackConfig) (*Track, error) {
	stream, err := dec.Open(ctx, src, OpenOptions{StartOffset: src.Start})
	if err != nil {
		if errors.Is(err, ErrDecodeUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeUnavailable, src, err)
	}
	trackCtx, cancel := context.WithCancel(context.Background())
	t := &Track{
		id:            id,
		source:        src,
		metadata:      metadata,
		addedAt:       time.Now(),
		decoder:       dec,
		preopen:       cfg.preopen,
		reopenTimeout: cfg.reopenTimeout,
		volume:        NewAtomicFloat64(clampVolume(volume)),
		ctx:           trackCtx,
		cancel:        cancel,
		stream:        stream,
	}
	t.loop.Store(loop)
	return t, nil
}

func (t *Track) ID() TrackID          { return t.id }
func (t *Track) Source() Source       { return t.source }
func (t *Track) Metadata() Metadata   { return t.metadata }
func (t *Track) AddedAt() time.Time   { return t.addedAt }
func (t *Track) Volume() float64      { return t.volume.Load() }
func (t *Track) Loop() bool           { return t.loop.Load() }
func (t *Track) Paused() bool         { return t.paused.Load() }
func (t *Track) Finished() bool       { return t.finished.Load() }
func (t *Track) SetLoop(loop bool)    { t.loop.Store(loop) }
func (t *Track) SetPaused(pause bool) { t.paused.Store(pause) }

// SetVolume sets the linear gain, clamped to [0, 1].
func (t *Track) SetVolume(v float64) {
	t.volume.Store(clampVolume(v))
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Read returns the next frame. It returns exactly FrameSize bytes, or an empty
// slice once the track has finished.
func (t *Track) Read() []byte {
	// finished wins over paused: a finished track never emits silence.
	if t.finished.Load() {
		return nil
	}
	if t.paused.Load() {
		return Silence()
	}

	t.readMu.Lock()
	defer t.readMu.Unlock()
	stream := t.current()
	if stream == nil {
		t.finished.Store(true)
		return nil
	}

	frame := make([]byte, FrameSize)
	n, err := readFrame(stream, frame)
	if t.isClosed() {
		t.finished.Store(true)
		return nil
	}
	if n > 0 {
		if err != nil && !isExhausted(err) {
			slog.Warn("track read failed; finishing after partial frame", "track_id", t.id, "error", err)
			t.finished.Store(true)
		} else if t.loop.Load() {
			t.startPreopen()
		}
		ScaleFrame(frame, t.volume.Load())
		return frame
	}
	if err != nil && !isExhausted(err) {
		slog.Warn("track read failed", "track_id", t.id, "error", err)
		t.finished.Store(true)
		return nil
	}

	if !t.loop.Load() {
		t.finished.Store(true)
		return nil
	}
	if stream = t.restart(stream); stream == nil {
		t.finished.Store(true)
		return nil
	}
	n, err = readFrame(stream, frame)
	if t.isClosed() {
		t.finished.Store(true)
		return nil
	}
	if n == 0 {
		slog.Debug("looping track produced nothing after restart", "track_id", t.id, "error", err)
		t.finished.Store(true)
		return nil
	}
	if err != nil && !isExhausted(err) {
		t.finished.Store(true)
	}
	ScaleFrame(frame, t.volume.Load())
	return frame
}

func (t *Track) current() Stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.stream
}

func (t *Track) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// restart replaces the drained stream with a fresh handle positioned at the
// start of the source. It returns nil when no stream could be had.
func (t *Track) restart(drained Stream) Stream {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	spare := t.spare
	t.stream, t.spare = spare, nil
	t.mu.Unlock()
	_ = drained.Close()
	if spare != nil {
		return spare
	}

	ctx, cancel := t.ctx, context.CancelFunc(func() {})
	if t.reopenTimeout > 0 {
		ctx, cancel = context.WithTimeout(t.ctx, t.reopenTimeout)
	}
	defer cancel()
	started := time.Now()
	stream, err := t.decoder.Open(ctx, t.source, OpenOptions{})
	if err != nil {
		slog.Warn("loop restart failed", "track_id", t.id, "error", err, "elapsed", time.Since(started))
		return nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	t.stream = stream
	t.mu.Unlock()
	slog.Debug("loop restarted without spare", "track_id", t.id, "elapsed", time.Since(started))
	return stream
}

// startPreopen opens the next loop iteration in the background so that a
// restart at end of stream does not block the audio path.
func (t *Track) startPreopen() {
	t.mu.Lock()
	if !t.preopen || t.spare != nil || t.preopening || t.closed {
		t.mu.Unlock()
		return
	}
	t.preopening = true
	t.mu.Unlock()

	go func() {
		stream, err := t.decoder.Open(t.ctx, t.source, OpenOptions{})

		t.mu.Lock()
		t.preopening = false
		if err != nil {
			t.mu.Unlock()
			slog.Debug("loop preopen failed", "track_id", t.id, "error", err)
			return
		}
		if t.closed || t.spare != nil {
			t.mu.Unlock()
			_ = stream.Close()
			return
		}
		t.spare = stream
		t.mu.Unlock()
	}()
}

// Cleanup releases the decoder stream and any spare. It does not wait for an
// in-flight Read; closing the stream is what unblocks one. It is safe to call
// more than once.
func (t *Track) Cleanup() {
	t.cancel()
	t.finished.Store(true)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stream, spare := t.stream, t.spare
	t.stream, t.spare = nil, nil
	t.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if spare != nil {
		_ = spare.Close()
	}
}

func isExhausted(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrDecodeExhausted)
}

const maxEmptyReads = 100

// readFrame fills p from r until it is full or r fails. Any unfilled tail is
// zeroed.
func readFrame(r io.Reader, p []byte) (int, error) {
	var (
		n     int
		err   error
		empty int
	)
	for n < len(p) {
		var m int
		m, err = r.Read(p[n:])
		n += m
		if err != nil {
			break
		}
		if m == 0 {
			empty++
			if empty >= maxEmptyReads {
				err = io.ErrNoProgress
				break
			}
		}
	}
	if n == len(p) {
		return n, nil
	}
	clear(p[n:])
	return n, err
}
