// Package iswc implements the rights gate. A track must resolve an ISWC
// before any processing is spent on it; a track that exhausts every source is
// terminally failed, not retried.
package iswc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"songmill/internal/logging"
	"songmill/internal/queue"
	"songmill/internal/services"
	"songmill/internal/services/musicbrainz"
	"songmill/internal/services/quansic"
)

// Result is a successful discovery: the code and which source produced it.
type Result struct {
	ISWC   string
	Source string
}

// Source names, in chain order.
const (
	SourceCache       = "cache"
	SourceQuansic     = "quansic"
	SourceMusicBrainz = "musicbrainz"
)

// quansicLookup is the slice of the Quansic client the evaluator uses.
type quansicLookup interface {
	Configured() bool
	LookupRecording(ctx context.Context, isrc string) (*quansic.Recording, error)
}

// musicbrainzLookup is the slice of the MusicBrainz client the evaluator uses.
type musicbrainzLookup interface {
	LookupISWC(ctx context.Context, isrc, title, artist string) (string, error)
}

// Evaluator walks the source chain: the track's own cached code, then
// Quansic, then MusicBrainz. Transient source errors abort the attempt so it
// can retry; a clean miss moves to the next source.
type Evaluator struct {
	quansic     quansicLookup
	musicbrainz musicbrainzLookup
	logger      *slog.Logger
}

// New builds an Evaluator. Either provider may be nil when unconfigured.
func New(q quansicLookup, mb musicbrainzLookup, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Evaluator{quansic: q, musicbrainz: mb, logger: logger}
}

// Discover resolves the track's ISWC. A nil error with a Result means the
// gate passed. services.ErrGateFailed means every source was consulted and
// none knows the work; any other error is a transient failure worth retrying.
func (e *Evaluator) Discover(ctx context.Context, track *queue.Track) (*Result, error) {
	if track == nil {
		return nil, services.Wrap(services.ErrValidation, "iswc", "discover", "track is nil", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	if cached := strings.TrimSpace(track.ISWC); cached != "" {
		logger.Debug("iswc already resolved", logging.String("source", SourceCache))
		return &Result{ISWC: cached, Source: SourceCache}, nil
	}

	if result, err := e.fromQuansic(ctx, track); err != nil {
		return nil, err
	} else if result != nil {
		logger.Info("iswc discovered", logging.String("source", result.Source), logging.String("iswc", result.ISWC))
		return result, nil
	}

	if result, err := e.fromMusicBrainz(ctx, track); err != nil {
		return nil, err
	} else if result != nil {
		logger.Info("iswc discovered", logging.String("source", result.Source), logging.String("iswc", result.ISWC))
		return result, nil
	}

	return nil, services.Wrap(services.ErrGateFailed, "iswc", "discover",
		fmt.Sprintf("no source knows an ISWC for %q by %q", track.Title, track.Artist), nil)
}

func (e *Evaluator) fromQuansic(ctx context.Context, track *queue.Track) (*Result, error) {
	if e.quansic == nil || !e.quansic.Configured() || strings.TrimSpace(track.ISRC) == "" {
		return nil, nil
	}
	recording, err := e.quansic.LookupRecording(ctx, track.ISRC)
	if errors.Is(err, quansic.ErrNoRecording) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "iswc", "quansic lookup", "quansic lookup failed", err)
	}
	if iswc := recording.ISWCValue(); iswc != "" {
		return &Result{ISWC: iswc, Source: SourceQuansic}, nil
	}
	return nil, nil
}

func (e *Evaluator) fromMusicBrainz(ctx context.Context, track *queue.Track) (*Result, error) {
	if e.musicbrainz == nil {
		return nil, nil
	}
	iswc, err := e.musicbrainz.LookupISWC(ctx, track.ISRC, track.Title, track.Artist)
	if errors.Is(err, musicbrainz.ErrNoWork) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "iswc", "musicbrainz lookup", "musicbrainz lookup failed", err)
	}
	if iswc != "" {
		return &Result{ISWC: iswc, Source: SourceMusicBrainz}, nil
	}
	return nil, nil
}
