package audio

import (
	"fmt"
	"math"
)

// CrossfadeMerge joins ordered chunks that share overlapSeconds of audio at
// each seam. Within an overlap the outgoing chunk fades with cos and the
// incoming with sin of the same ramp, so combined power stays constant across
// the seam. Chunks must agree on sample rate and channel count.
func CrossfadeMerge(chunks []*Buffer, overlapSeconds float64) (*Buffer, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to merge")
	}
	first := chunks[0]
	if len(chunks) == 1 {
		samples := make([]float64, len(first.Samples))
		copy(samples, first.Samples)
		return &Buffer{SampleRate: first.SampleRate, Channels: first.Channels, Samples: samples}, nil
	}

	for i, chunk := range chunks {
		if chunk == nil || chunk.Frames() == 0 {
			return nil, fmt.Errorf("chunk %d is empty", i)
		}
		if chunk.SampleRate != first.SampleRate || chunk.Channels != first.Channels {
			return nil, fmt.Errorf("chunk %d format mismatch: %d Hz %d ch, want %d Hz %d ch",
				i, chunk.SampleRate, chunk.Channels, first.SampleRate, first.Channels)
		}
	}

	overlapFrames := int(math.Round(overlapSeconds * float64(first.SampleRate)))
	if overlapFrames < 1 {
		return nil, fmt.Errorf("overlap %.3fs too small at %d Hz", overlapSeconds, first.SampleRate)
	}

	merged := &Buffer{SampleRate: first.SampleRate, Channels: first.Channels}
	merged.Samples = append(merged.Samples, first.Samples...)

	for i := 1; i < len(chunks); i++ {
		next := chunks[i]
		fade := overlapFrames
		if next.Frames() < fade {
			fade = next.Frames()
		}
		if merged.Frames() < fade {
			fade = merged.Frames()
		}

		channels := merged.Channels
		tailStart := (merged.Frames() - fade) * channels
		for frame := 0; frame < fade; frame++ {
			ramp := (float64(frame) + 0.5) / float64(fade)
			gainOut := math.Cos(ramp * math.Pi / 2)
			gainIn := math.Sin(ramp * math.Pi / 2)
			for ch := 0; ch < channels; ch++ {
				idx := tailStart + frame*channels + ch
				merged.Samples[idx] = merged.Samples[idx]*gainOut + next.Samples[frame*channels+ch]*gainIn
			}
		}
		merged.Samples = append(merged.Samples, next.Samples[fade*channels:]...)
	}
	return merged, nil
}
