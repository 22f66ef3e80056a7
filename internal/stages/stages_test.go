package stages

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"songmill/internal/audio"
	"songmill/internal/lyrics"
	"songmill/internal/queue"
)

// memObjects is an in-memory object store for handler tests.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return append([]byte(nil), data...), nil
}

// makeWAV encodes a mono WAV of the given duration at a small sample rate.
func makeWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	const rate = 8000
	buf := &audio.Buffer{
		SampleRate: rate,
		Channels:   1,
		Samples:    make([]float64, int(seconds*rate)),
	}
	for i := range buf.Samples {
		buf.Samples[i] = 0.25
	}
	var out bytes.Buffer
	if err := audio.EncodeWAV(&out, buf); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return out.Bytes()
}

func testTask(trackID int64, taskType queue.TaskType) *queue.Task {
	return &queue.Task{TrackID: trackID, Type: taskType, Status: queue.StatusProcessing}
}

// timedLines builds lines with evenly spaced word timings for transcript tests.
func timedLines(spans [][2]float64, texts []string) []lyrics.Line {
	lines := make([]lyrics.Line, len(spans))
	for i, span := range spans {
		line := lyrics.Line{
			Index:        i,
			StartSeconds: span[0],
			EndSeconds:   span[1],
			Text:         texts[i],
		}
		tokens := bytes.Fields([]byte(texts[i]))
		step := (span[1] - span[0]) / float64(len(tokens))
		for j, token := range tokens {
			line.Words = append(line.Words, lyrics.Word{
				Text:         string(token),
				StartSeconds: span[0] + float64(j)*step,
				EndSeconds:   span[0] + float64(j+1)*step,
			})
		}
		lines[i] = line
	}
	return lines
}
