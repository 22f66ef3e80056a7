// Package enhance splits audio that exceeds the external processor's duration
// ceiling into overlapping chunks, runs the chunks through the processor, and
// crossfades the results back into one continuous take.
package enhance

import (
	"fmt"
	"math"
)

// Chunk is one planned span of the source audio in absolute seconds. Spans
// overlap their neighbors by the configured overlap so the merge has material
// to crossfade.
type Chunk struct {
	Index        int
	StartSeconds float64
	EndSeconds   float64
}

// DurationSeconds returns the chunk length.
func (c Chunk) DurationSeconds() float64 {
	return c.EndSeconds - c.StartSeconds
}

// Plan computes the chunk spans for a source of the given duration. Audio at
// or under the ceiling yields a single full-length chunk. Otherwise chunks
// advance by ceiling-overlap so each one starts overlap seconds before the
// previous one ended, and the final chunk is clipped to the source duration.
func Plan(durationSeconds, ceilingSeconds, overlapSeconds float64) ([]Chunk, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("non-positive duration %.3f", durationSeconds)
	}
	if ceilingSeconds <= 0 {
		return nil, fmt.Errorf("non-positive ceiling %.3f", ceilingSeconds)
	}
	if overlapSeconds < 0 || overlapSeconds >= ceilingSeconds {
		return nil, fmt.Errorf("overlap %.3f outside [0, ceiling)", overlapSeconds)
	}

	if durationSeconds <= ceilingSeconds {
		return []Chunk{{Index: 0, StartSeconds: 0, EndSeconds: durationSeconds}}, nil
	}

	stride := ceilingSeconds - overlapSeconds
	count := int(math.Ceil((durationSeconds - overlapSeconds) / stride))
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * stride
		end := start + ceilingSeconds
		if end > durationSeconds {
			end = durationSeconds
		}
		chunks = append(chunks, Chunk{Index: i, StartSeconds: start, EndSeconds: end})
	}
	return chunks, nil
}
