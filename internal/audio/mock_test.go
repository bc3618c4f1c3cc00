package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

type memStream struct {
	r       *bytes.Reader
	failAt  int
	read    int
	mu      sync.Mutex
	closed  bool
	onClose func()
}

func (s *memStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("read on closed stream")
	}
	if s.failAt > 0 && s.read >= s.failAt {
		return 0, errors.New("decoder crashed")
	}
	if s.failAt > 0 && s.read+len(p) > s.failAt {
		p = p[:s.failAt-s.read]
	}
	n, err := s.r.Read(p)
	s.read += n
	return n, err
}

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		if s.onClose != nil {
			s.onClose()
		}
	}
	return nil
}

// memDecoder serves in-memory PCM keyed by source location.
type memDecoder struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAt  map[string]int
	opens   map[string]int
	closes  int
	openErr map[string]error
	// failAfterOpens makes every open past the given count fail.
	failAfterOpens int
}

func newMemDecoder() *memDecoder {
	return &memDecoder{
		data:    make(map[string][]byte),
		failAt:  make(map[string]int),
		opens:   make(map[string]int),
		openErr: make(map[string]error),
	}
}

func (d *memDecoder) add(location string, pcm []byte) Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[location] = pcm
	return Source{Location: location}
}

func (d *memDecoder) Open(_ context.Context, src Source, opts OpenOptions) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openErr[src.Location]; err != nil {
		return nil, err
	}
	pcm, ok := d.data[src.Location]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such source", ErrDecodeUnavailable, src.Location)
	}
	d.opens[src.Location]++
	if d.failAfterOpens > 0 && d.opens[src.Location] > d.failAfterOpens {
		return nil, fmt.Errorf("%w: %s: gone", ErrDecodeUnavailable, src.Location)
	}
	offset := BytesForDuration(opts.StartOffset)
	if offset > int64(len(pcm)) {
		offset = int64(len(pcm))
	}
	return &memStream{
		r:      bytes.NewReader(pcm[offset:]),
		failAt: d.failAt[src.Location],
		onClose: func() {
			d.mu.Lock()
			d.closes++
			d.mu.Unlock()
		},
	}, nil
}

func (d *memDecoder) openCount(location string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens[location]
}

func (d *memDecoder) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// constFrames builds n frames where every sample of frame i equals values[i].
func constFrames(values ...int16) []byte {
	out := make([]byte, 0, len(values)*FrameSize)
	for _, v := range values {
		frame := make([]byte, FrameSize)
		for i := 0; i < SamplesPerFrame; i++ {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(v))
		}
		out = append(out, frame...)
	}
	return out
}

func rampFrames(n int, start int16) []byte {
	out := make([]byte, n*FrameSize)
	v := start
	for i := 0; i < n*SamplesPerFrame; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		v += 7
	}
	return out
}

func sampleAt(frame []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(frame[i*2:]))
}

// stallStream blocks every Read until it is closed, like a dead network pipe.
type stallStream struct {
	entered   chan struct{}
	closed    chan struct{}
	enterOnce sync.Once
	closeOnce sync.Once
}

func newStallStream() *stallStream {
	return &stallStream{entered: make(chan struct{}), closed: make(chan struct{})}
}

func (s *stallStream) Read(_ []byte) (int, error) {
	s.enterOnce.Do(func() { close(s.entered) })
	<-s.closed
	return 0, io.ErrClosedPipe
}

func (s *stallStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *stallStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// gatedDecoder hands out streams in order. With gateFrom > 0, opens from the
// gateFrom-th on wait for gate to be closed or for ctx; waiting is closed when the first of
// them starts waiting.
type gatedDecoder struct {
	mu       sync.Mutex
	next     []Stream
	opens    int
	gateFrom int
	gate     chan struct{}
	waiting  chan struct{}
	waitOnce sync.Once
}

func newGatedDecoder(gateFrom int, streams ...Stream) *gatedDecoder {
	return &gatedDecoder{
		next:     streams,
		gateFrom: gateFrom,
		gate:     make(chan struct{}),
		waiting:  make(chan struct{}),
	}
}

func (d *gatedDecoder) Open(ctx context.Context, src Source, _ OpenOptions) (Stream, error) {
	d.mu.Lock()
	d.opens++
	gated := d.gateFrom > 0 && d.opens >= d.gateFrom
	d.mu.Unlock()

	if gated {
		d.waitOnce.Do(func() { close(d.waiting) })
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrDecodeUnavailable, src.Location, ctx.Err())
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.next) == 0 {
		return nil, fmt.Errorf("%w: %s: no stream left", ErrDecodeUnavailable, src.Location)
	}
	stream := d.next[0]
	d.next = d.next[1:]
	return stream, nil
}

var _ io.ReadCloser = (*memStream)(nil)
