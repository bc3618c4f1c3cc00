package audio

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultReopenTimeout = 2 * time.Second

// RemoveReason tells an OnTrackRemoved hook why a track left the mix.
type RemoveReason string

const (
	RemoveReasonFinished RemoveReason = "finished"
	RemoveReasonRemoved  RemoveReason = "removed"
	RemoveReasonCleanup  RemoveReason = "cleanup"
)

type MixerOption interface {
	apply(*Mixer)
}

type mixerOptionFunc func(*Mixer)

func (f mixerOptionFunc) apply(m *Mixer) { f(m) }

// WithMaxTracks limits how many tracks may be mixed at once. Zero means no limit.
func WithMaxTracks(n int) MixerOption {
	return mixerOptionFunc(func(m *Mixer) { m.maxTracks = n })
}

// WithLoopPreopen enables or disables opening the next loop iteration ahead of
// end of stream. Enabled by default.
func WithLoopPreopen(enabled bool) MixerOption {
	return mixerOptionFunc(func(m *Mixer) { m.trackCfg.preopen = enabled })
}

// WithReopenTimeout bounds the synchronous reopen a looping track performs when
// no pre-opened stream is ready.
func WithReopenTimeout(d time.Duration) MixerOption {
	return mixerOptionFunc(func(m *Mixer) { m.trackCfg.reopenTimeout = d })
}

// WithOnTrackRemoved registers a hook called after a track has been evicted and
// cleaned up. It may run on the audio path, so it must not block.
func WithOnTrackRemoved(fn func(t *Track, reason RemoveReason)) MixerOption {
	return mixerOptionFunc(func(m *Mixer) { m.onTrackRemoved = fn })
}

// Mixer sums any number of tracks into one perpetual 20ms frame stream.
//
// It is safe to call methods on Mixer from multiple goroutines.
type Mixer struct {
	decoder   Decoder
	maxTracks int
	trackCfg  trackConfig

	onTrackRemoved func(*Track, RemoveReason)

	mu     sync.Mutex
	tracks map[TrackID]*Track
	seq    uint64
	closed bool
}

func NewMixer(dec Decoder, opts ...MixerOption) *Mixer {
	m := &Mixer{
		decoder: dec,
		trackCfg: trackConfig{
			preopen:       true,
			reopenTimeout: defaultReopenTimeout,
		},
		tracks: make(map[TrackID]*Track),
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	return m
}

// AddTrack opens src and adds it to the mix. The open happens outside the
// mixer lock, so an in-flight Read is never held up by it. After Close it
// fails with ErrMixerClosed.
func (m *Mixer) AddTrack(ctx context.Context, src Source, volume float64, loop bool, metadata Metadata) (TrackID, error) {
	m.mu.Lock()
	closed, n := m.closed, len(m.tracks)
	m.mu.Unlock()
	if closed {
		return "", ErrMixerClosed
	}
	if m.maxTracks > 0 && n >= m.maxTracks {
		return "", fmt.Errorf("%w: limit is %d", ErrTooManyTracks, m.maxTracks)
	}
	id := TrackID(uuid.NewString())
	t, err := newTrack(ctx, id, m.decoder, src, volume, loop, metadata, m.trackCfg)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		t.Cleanup()
		return "", ErrMixerClosed
	}
	if m.maxTracks > 0 && len(m.tracks) >= m.maxTracks {
		m.mu.Unlock()
		t.Cleanup()
		return "", fmt.Errorf("%w: limit is %d", ErrTooManyTracks, m.maxTracks)
	}
	m.seq++
	t.seq = m.seq
	m.tracks[id] = t
	m.mu.Unlock()

	slog.Debug("track added", "track_id", id, "source", src.Location, "volume", t.Volume(), "loop", loop)
	return id, nil
}

// RemoveTrack stops and cleans up a track. It reports whether the track was
// present.
func (m *Mixer) RemoveTrack(id TrackID) bool {
	m.mu.Lock()
	t, ok := m.tracks[id]
	if ok {
		delete(m.tracks, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	t.Cleanup()
	m.notifyRemoved(t, RemoveReasonRemoved)
	return true
}

func (m *Mixer) GetTrack(id TrackID) (*Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	return t, ok
}

// Len returns the number of tracks currently held by the mixer.
func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

// Tracks returns a snapshot of the held tracks in insertion order.
func (m *Mixer) Tracks() []*Track {
	m.mu.Lock()
	list := make([]*Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		list = append(list, t)
	}
	m.mu.Unlock()
	slices.SortFunc(list, func(a, b *Track) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return list
}

// Read mixes one frame from every active track. It always returns exactly
// FrameSize bytes; with no tracks the frame is silence.
func (m *Mixer) Read() []byte {
	m.mu.Lock()
	active := make([]*Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		if !t.Finished() {
			active = append(active, t)
		}
	}
	m.mu.Unlock()

	var acc [SamplesPerFrame]int32
	for _, t := range active {
		if frame := t.Read(); len(frame) == FrameSize {
			Accumulate(acc[:], frame)
		}
	}
	out := make([]byte, FrameSize)
	EncodeSaturated(out, acc[:])

	m.sweep()
	return out
}

// sweep evicts every finished track.
func (m *Mixer) sweep() {
	var evicted []*Track
	m.mu.Lock()
	for id, t := range m.tracks {
		if t.Finished() {
			delete(m.tracks, id)
			evicted = append(evicted, t)
		}
	}
	m.mu.Unlock()

	for _, t := range evicted {
		t.Cleanup()
		slog.Debug("track finished", "track_id", t.ID(), "source", t.Source().Location)
		m.notifyRemoved(t, RemoveReasonFinished)
	}
}

// Cleanup stops and removes every track. The mixer stays usable afterwards.
func (m *Mixer) Cleanup() {
	m.mu.Lock()
	tracks := m.tracks
	m.tracks = make(map[TrackID]*Track)
	m.mu.Unlock()

	for _, t := range tracks {
		t.Cleanup()
		m.notifyRemoved(t, RemoveReasonCleanup)
	}
}

// Close cleans up every track and makes later AddTrack calls fail. A track
// whose open was in flight is cleaned up instead of being added.
func (m *Mixer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Cleanup()
}

func (m *Mixer) notifyRemoved(t *Track, reason RemoveReason) {
	if m.onTrackRemoved != nil {
		m.onTrackRemoved(t, reason)
	}
}
