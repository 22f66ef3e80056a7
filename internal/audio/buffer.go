// Package audio provides the in-memory PCM representation the enhancement
// engine works on, plus WAV encode/decode and the crossfade merge applied to
// overlapping processed chunks.
package audio

import (
	"fmt"
	"math"
)

// Buffer holds interleaved PCM samples normalized to [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Slice returns a copy of the buffer between two absolute offsets in seconds.
// Bounds are clamped to the buffer; an inverted or empty range errors.
func (b *Buffer) Slice(startSeconds, endSeconds float64) (*Buffer, error) {
	if b == nil {
		return nil, fmt.Errorf("slice of nil buffer")
	}
	if startSeconds < 0 {
		startSeconds = 0
	}
	if max := b.Duration(); endSeconds > max {
		endSeconds = max
	}
	if endSeconds <= startSeconds {
		return nil, fmt.Errorf("empty slice range [%.3f, %.3f)", startSeconds, endSeconds)
	}

	startFrame := int(math.Round(startSeconds * float64(b.SampleRate)))
	endFrame := int(math.Round(endSeconds * float64(b.SampleRate)))
	if endFrame > b.Frames() {
		endFrame = b.Frames()
	}

	samples := make([]float64, (endFrame-startFrame)*b.Channels)
	copy(samples, b.Samples[startFrame*b.Channels:endFrame*b.Channels])
	return &Buffer{SampleRate: b.SampleRate, Channels: b.Channels, Samples: samples}, nil
}
