package fal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"songmill/internal/audio"
)

func chunkBuffer() *audio.Buffer {
	samples := make([]float64, 800)
	for i := range samples {
		samples[i] = 0.25
	}
	return &audio.Buffer{SampleRate: 8000, Channels: 1, Samples: samples}
}

func TestProcessSubmitPollFetch(t *testing.T) {
	var statusCalls atomic.Int32

	var wav bytes.Buffer
	if err := audio.EncodeWAV(&wav, chunkBuffer()); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	inline := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav.Bytes())

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Key secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-1",
			"status_url":   server.URL + "/status",
			"response_url": server.URL + "/result",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := "IN_PROGRESS"
		if statusCalls.Add(1) >= 2 {
			status = "COMPLETED"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"audio": map[string]string{"url": inline},
		})
	})

	client := NewClient(
		Config{APIKey: "secret", BaseURL: server.URL},
		WithPollInterval(time.Millisecond),
	)
	enhanced, err := client.Process(context.Background(), chunkBuffer())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if enhanced.Frames() != chunkBuffer().Frames() {
		t.Fatalf("frame count changed: %d", enhanced.Frames())
	}
	if statusCalls.Load() < 2 {
		t.Fatalf("expected at least 2 status polls, got %d", statusCalls.Load())
	}
}

func TestProcessFailedRequest(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-2",
			"status_url":   server.URL + "/status",
			"response_url": server.URL + "/result",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "FAILED", "error": "gpu quota exceeded"})
	})

	client := NewClient(
		Config{APIKey: "secret", BaseURL: server.URL},
		WithPollInterval(time.Millisecond),
	)
	if _, err := client.Process(context.Background(), chunkBuffer()); err == nil {
		t.Fatal("expected failure status to error")
	}
}

func TestProcessRequiresCredentials(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Process(context.Background(), chunkBuffer()); err == nil {
		t.Fatal("expected error without credentials")
	}
}
