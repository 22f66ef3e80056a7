package iswc

import (
	"context"
	"errors"
	"testing"

	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/services/musicbrainz"
	"songmill/internal/services/quansic"
)

type fakeQuansic struct {
	recording *quansic.Recording
	err       error
	calls     int
}

func (f *fakeQuansic) Configured() bool { return true }

func (f *fakeQuansic) LookupRecording(context.Context, string) (*quansic.Recording, error) {
	f.calls++
	return f.recording, f.err
}

type fakeMusicBrainz struct {
	iswc  string
	err   error
	calls int
}

func (f *fakeMusicBrainz) LookupISWC(context.Context, string, string, string) (string, error) {
	f.calls++
	return f.iswc, f.err
}

func track() *queue.Track {
	return &queue.Track{ID: 1, Title: "Night Drive", Artist: "The Atlas", ISRC: "USUM72301234"}
}

func TestDiscoverCachedShortCircuits(t *testing.T) {
	q := &fakeQuansic{}
	mb := &fakeMusicBrainz{}
	evaluator := New(q, mb, nil)

	cached := track()
	cached.ISWC = "T-123.456.789-0"
	result, err := evaluator.Discover(context.Background(), cached)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if result.Source != SourceCache || result.ISWC != "T-123.456.789-0" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if q.calls != 0 || mb.calls != 0 {
		t.Fatal("cached hit must not consult providers")
	}
}

func TestDiscoverQuansicShortCircuits(t *testing.T) {
	q := &fakeQuansic{recording: &quansic.Recording{ISWC: "T-111.111.111-1"}}
	mb := &fakeMusicBrainz{}
	evaluator := New(q, mb, nil)

	result, err := evaluator.Discover(context.Background(), track())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if result.Source != SourceQuansic {
		t.Fatalf("unexpected source %q", result.Source)
	}
	if mb.calls != 0 {
		t.Fatal("quansic hit must not consult musicbrainz")
	}
}

func TestDiscoverFallsBackToMusicBrainz(t *testing.T) {
	q := &fakeQuansic{err: quansic.ErrNoRecording}
	mb := &fakeMusicBrainz{iswc: "T-222.222.222-2"}
	evaluator := New(q, mb, nil)

	result, err := evaluator.Discover(context.Background(), track())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if result.Source != SourceMusicBrainz || result.ISWC != "T-222.222.222-2" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestDiscoverExhaustedSourcesGateFails(t *testing.T) {
	q := &fakeQuansic{err: quansic.ErrNoRecording}
	mb := &fakeMusicBrainz{err: musicbrainz.ErrNoWork}
	evaluator := New(q, mb, nil)

	_, err := evaluator.Discover(context.Background(), track())
	if !errors.Is(err, services.ErrGateFailed) {
		t.Fatalf("expected gate failure, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("gate failure must not be retryable")
	}
}

func TestDiscoverTransientProviderErrorIsRetryable(t *testing.T) {
	q := &fakeQuansic{err: errors.New("connection reset")}
	evaluator := New(q, &fakeMusicBrainz{}, nil)

	_, err := evaluator.Discover(context.Background(), track())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, services.ErrGateFailed) {
		t.Fatal("transient provider error must not gate-fail")
	}
	if !services.Retryable(err) {
		t.Fatal("provider outage must stay retryable")
	}
}

func TestDiscoverNoProvidersGateFails(t *testing.T) {
	evaluator := New(nil, nil, nil)
	_, err := evaluator.Discover(context.Background(), track())
	if !errors.Is(err, services.ErrGateFailed) {
		t.Fatalf("expected gate failure, got %v", err)
	}
}
