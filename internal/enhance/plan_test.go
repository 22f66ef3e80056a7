package enhance

import (
	"math"
	"testing"
)

func TestPlanSingleChunkAtOrUnderCeiling(t *testing.T) {
	for _, duration := range []float64{1, 120, 190} {
		chunks, err := Plan(duration, 190, 2)
		if err != nil {
			t.Fatalf("Plan(%f) failed: %v", duration, err)
		}
		if len(chunks) != 1 {
			t.Fatalf("Plan(%f): expected 1 chunk, got %d", duration, len(chunks))
		}
		if chunks[0].StartSeconds != 0 || chunks[0].EndSeconds != duration {
			t.Fatalf("Plan(%f): unexpected span %+v", duration, chunks[0])
		}
	}
}

func TestPlanOverlappingChunks(t *testing.T) {
	chunks, err := Plan(400, 190, 2)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []Chunk{
		{Index: 0, StartSeconds: 0, EndSeconds: 190},
		{Index: 1, StartSeconds: 188, EndSeconds: 378},
		{Index: 2, StartSeconds: 376, EndSeconds: 400},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if math.Abs(chunks[i].StartSeconds-want[i].StartSeconds) > 1e-9 ||
			math.Abs(chunks[i].EndSeconds-want[i].EndSeconds) > 1e-9 {
			t.Fatalf("chunk %d: got %+v, want %+v", i, chunks[i], want[i])
		}
	}
}

func TestPlanChunkInvariants(t *testing.T) {
	const (
		ceiling = 190.0
		overlap = 2.0
	)
	for duration := 10.0; duration <= 2000; duration += 73.7 {
		chunks, err := Plan(duration, ceiling, overlap)
		if err != nil {
			t.Fatalf("Plan(%f) failed: %v", duration, err)
		}
		if chunks[0].StartSeconds != 0 {
			t.Fatalf("Plan(%f): first chunk starts at %f", duration, chunks[0].StartSeconds)
		}
		last := chunks[len(chunks)-1]
		if math.Abs(last.EndSeconds-duration) > 1e-9 {
			t.Fatalf("Plan(%f): last chunk ends at %f", duration, last.EndSeconds)
		}
		for i, chunk := range chunks {
			if chunk.DurationSeconds() > ceiling+1e-9 {
				t.Fatalf("Plan(%f): chunk %d exceeds ceiling: %+v", duration, i, chunk)
			}
			if i == 0 {
				continue
			}
			prev := chunks[i-1]
			seam := prev.EndSeconds - chunk.StartSeconds
			if math.Abs(seam-overlap) > 1e-9 {
				t.Fatalf("Plan(%f): seam %d overlap is %f, want %f", duration, i, seam, overlap)
			}
		}
	}
}

func TestPlanRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name                       string
		duration, ceiling, overlap float64
	}{
		{"zero duration", 0, 190, 2},
		{"zero ceiling", 100, 0, 2},
		{"overlap equals ceiling", 100, 190, 190},
		{"negative overlap", 100, 190, -1},
	}
	for _, tc := range cases {
		if _, err := Plan(tc.duration, tc.ceiling, tc.overlap); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
