package enhance

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"songmill/internal/audio"
)

type fakeProcessor struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   int32
}

func (f *fakeProcessor) Process(_ context.Context, chunk *audio.Buffer) (*audio.Buffer, error) {
	call := f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if f.failOn != 0 && call == f.failOn {
		return nil, errors.New("processor exploded")
	}

	out := &audio.Buffer{SampleRate: chunk.SampleRate, Channels: chunk.Channels, Samples: make([]float64, len(chunk.Samples))}
	for i, sample := range chunk.Samples {
		out.Samples[i] = sample * 0.9
	}
	return out, nil
}

func sourceBuffer(seconds float64) *audio.Buffer {
	sampleRate := 1000
	frames := int(seconds * float64(sampleRate))
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 0.4
	}
	return &audio.Buffer{SampleRate: sampleRate, Channels: 1, Samples: samples}
}

func TestEnhanceMergedDurationMatchesSource(t *testing.T) {
	proc := &fakeProcessor{}
	engine, err := NewEngine(proc, Options{CeilingSeconds: 190, OverlapSeconds: 2, Parallelism: 2})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	source := sourceBuffer(400)
	merged, err := engine.Enhance(context.Background(), source)
	if err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}
	if math.Abs(merged.Duration()-source.Duration()) > 0.01 {
		t.Fatalf("duration drifted: %f vs %f", merged.Duration(), source.Duration())
	}
	if got := proc.calls.Load(); got != 3 {
		t.Fatalf("expected 3 chunk calls, got %d", got)
	}
}

func TestEnhanceShortSourceSkipsChunking(t *testing.T) {
	proc := &fakeProcessor{}
	engine, err := NewEngine(proc, Options{CeilingSeconds: 190, OverlapSeconds: 2})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if _, err := engine.Enhance(context.Background(), sourceBuffer(60)); err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}
	if got := proc.calls.Load(); got != 1 {
		t.Fatalf("expected single call, got %d", got)
	}
}

func TestEnhanceFailsWholeRunOnChunkError(t *testing.T) {
	proc := &fakeProcessor{failOn: 2}
	engine, err := NewEngine(proc, Options{CeilingSeconds: 100, OverlapSeconds: 2, Parallelism: 1})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if _, err := engine.Enhance(context.Background(), sourceBuffer(400)); err == nil {
		t.Fatal("expected chunk failure to fail the run")
	}
}

func TestEnhanceBoundsParallelism(t *testing.T) {
	proc := &fakeProcessor{}
	engine, err := NewEngine(proc, Options{CeilingSeconds: 50, OverlapSeconds: 2, Parallelism: 2})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if _, err := engine.Enhance(context.Background(), sourceBuffer(500)); err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}
	if peak := proc.peak.Load(); peak > 2 {
		t.Fatalf("parallelism exceeded: peak %d", peak)
	}
}
