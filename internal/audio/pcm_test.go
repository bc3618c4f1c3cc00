package audio

import (
	"testing"
	"time"
)

func TestFrameSize(t *testing.T) {
	if FrameSize != 3840 {
		t.Fatalf("expected 3840-byte frames, got %d", FrameSize)
	}
	if SamplesPerFrame != 1920 {
		t.Fatalf("expected 1920 samples per frame, got %d", SamplesPerFrame)
	}
}

func TestMixFrames_SaturatesAndIsOrderIndependent(t *testing.T) {
	a := constFrames(30000)
	b := constFrames(10000)
	c := constFrames(-25000)

	abc := MixFrames(a, b, c)
	cba := MixFrames(c, b, a)
	if s := sampleAt(abc, 0); s != 15000 {
		t.Fatalf("expected 15000, got %d", s)
	}
	if s := sampleAt(cba, 0); s != 15000 {
		t.Fatalf("expected order independent result, got %d", s)
	}
	if s := sampleAt(MixFrames(a, b), 0); s != 32767 {
		t.Fatalf("expected positive saturation, got %d", s)
	}
	if s := sampleAt(MixFrames(constFrames(-30000), constFrames(-30000)), 0); s != -32768 {
		t.Fatalf("expected negative saturation, got %d", s)
	}
}

func TestMixFrames_EmptyIsSilence(t *testing.T) {
	got := MixFrames()
	if len(got) != FrameSize || !IsSilent(got) {
		t.Fatal("expected full silence frame")
	}
	got = MixFrames(nil, constFrames(4))
	if s := sampleAt(got, SamplesPerFrame-1); s != 4 {
		t.Fatalf("expected empty frames to be skipped, got %d", s)
	}
}

func TestScaleFrame_UnityIsNoop(t *testing.T) {
	f := rampFrames(1, -500)
	orig := append([]byte(nil), f...)
	ScaleFrame(f, 1)
	for i := range f {
		if f[i] != orig[i] {
			t.Fatal("unity volume must not change samples")
		}
	}
	ScaleFrame(f, 0)
	if !IsSilent(f) {
		t.Fatal("zero volume must silence the frame")
	}
}

func TestBytesForDuration(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                     0,
		-time.Second:          0,
		20 * time.Millisecond: int64(FrameSize),
		30 * time.Millisecond: int64(FrameSize),
		time.Second:           50 * int64(FrameSize),
	}
	for d, want := range cases {
		if got := BytesForDuration(d); got != want {
			t.Fatalf("%v: expected %d, got %d", d, want, got)
		}
	}
}

func TestAtomicFloat64(t *testing.T) {
	af := NewAtomicFloat64(0.5)
	if af.Load() != 0.5 {
		t.Fatalf("expected 0.5, got %v", af.Load())
	}
	af.Store(0.125)
	if af.Load() != 0.125 {
		t.Fatalf("expected 0.125, got %v", af.Load())
	}
}
