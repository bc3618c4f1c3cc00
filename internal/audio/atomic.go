package audio

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 stores a float64 behind an atomic uint64 so readers on the
// audio path never observe a torn value.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

func NewAtomicFloat64(v float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.Store(v)
	return af
}

func (af *AtomicFloat64) Load() float64 {
	return math.Float64frombits(af.bits.Load())
}

func (af *AtomicFloat64) Store(v float64) {
	af.bits.Store(math.Float64bits(v))
}
