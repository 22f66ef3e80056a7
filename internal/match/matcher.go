package match

import (
	"context"
	"fmt"
	"log/slog"

	"songmill/internal/logging"
	"songmill/internal/lyrics"
	"songmill/internal/services"
)

// Candidate is one plausible placement of a fragment in the transcript.
type Candidate struct {
	StartSeconds float64
	EndSeconds   float64
	Score        float64
	Excerpt      string
}

// Disambiguator picks among near-tied candidates. Implementations may call
// out to a language model; errors make the matcher fall back to its
// deterministic ranking.
type Disambiguator interface {
	Choose(ctx context.Context, fragment string, candidates []Candidate) (int, error)
}

// Matcher aligns a lyric fragment against a timed transcript.
type Matcher struct {
	threshold     float64
	tieMargin     float64
	disambiguator Disambiguator
	logger        *slog.Logger
}

// maxGap is how many transcript words a single fragment word may skip before
// the scan gives up on the current placement. Keeps filler words and
// transcription noise from breaking otherwise solid alignments.
const maxGap = 3

// Options configures a Matcher.
type Options struct {
	// Threshold is the minimum fraction of fragment words that must align.
	Threshold float64
	// TieMargin is how close to the best score a candidate must be to force
	// disambiguation. Zero selects the default. Candidates above Threshold
	// but outside the margin never escalate; the best raw score wins outright.
	TieMargin     float64
	Disambiguator Disambiguator
	Logger        *slog.Logger
}

// New builds a Matcher.
func New(opts Options) (*Matcher, error) {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold %.3f outside (0, 1]", opts.Threshold)
	}
	margin := opts.TieMargin
	if margin <= 0 {
		margin = 0.05
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{
		threshold:     opts.Threshold,
		tieMargin:     margin,
		disambiguator: opts.Disambiguator,
		logger:        logger,
	}, nil
}

// Find locates the fragment in the transcript and returns the winning
// candidate. When several placements score within the tie margin of the best,
// the disambiguator chooses; without one, or when it errs, the
// highest-scoring earliest placement wins.
func (m *Matcher) Find(ctx context.Context, fragment string, words []lyrics.Word) (*Candidate, error) {
	tokens := Tokenize(fragment)
	if len(tokens) == 0 {
		return nil, services.Wrap(services.ErrValidation, "match", "tokenize", "fragment has no usable words", nil)
	}
	if len(words) == 0 {
		return nil, services.Wrap(services.ErrValidation, "match", "tokenize", "transcript is empty", nil)
	}

	transcript := make([]string, len(words))
	for i, word := range words {
		transcript[i] = NormalizeToken(word.Text)
	}

	candidates := m.scan(tokens, words, transcript)
	if len(candidates) == 0 || candidates[0].Score < m.threshold {
		best := 0.0
		if len(candidates) > 0 {
			best = candidates[0].Score
		}
		return nil, services.Wrap(services.ErrNotFound, "match", "scan",
			fmt.Sprintf("no alignment above threshold %.2f (best %.2f)", m.threshold, best), nil)
	}

	tied := tiedCandidates(candidates, m.tieMargin)
	if len(tied) == 1 || m.disambiguator == nil {
		return &tied[0], nil
	}

	choice, err := m.disambiguator.Choose(ctx, fragment, tied)
	if err != nil || choice < 0 || choice >= len(tied) {
		m.logger.Warn("disambiguation failed, using deterministic ranking",
			logging.Int("candidates", len(tied)), logging.Error(err))
		return &tied[0], nil
	}
	m.logger.Debug("disambiguated fragment placement",
		logging.Int("choice", choice), logging.Int("candidates", len(tied)))
	return &tied[choice], nil
}

// scan slides a start position across the transcript. From each start it
// walks a monotonic cursor forward, letting each fragment token look at most
// maxGap words ahead, and scores the placement by the fraction of fragment
// tokens that found a home. Every position is a valid start; a placement may
// survive losing its leading words as long as enough of the rest align.
// Results come back sorted best first, earliest first.
func (m *Matcher) scan(tokens []string, words []lyrics.Word, transcript []string) []Candidate {
	var candidates []Candidate
	for start := range transcript {
		if transcript[start] == "" {
			continue
		}

		matched := 0
		firstWord, lastWord := -1, -1
		cursor := start
		for _, token := range tokens {
			found := -1
			for look := cursor; look < len(transcript) && look <= cursor+maxGap; look++ {
				if transcript[look] == token {
					found = look
					break
				}
			}
			if found == -1 {
				continue
			}
			matched++
			if firstWord == -1 {
				firstWord = found
			}
			lastWord = found
			cursor = found + 1
		}
		if matched == 0 {
			continue
		}

		score := float64(matched) / float64(len(tokens))
		if score < m.threshold {
			continue
		}
		candidates = append(candidates, Candidate{
			StartSeconds: words[firstWord].StartSeconds,
			EndSeconds:   words[lastWord].EndSeconds,
			Score:        score,
			Excerpt:      excerpt(words, firstWord, lastWord),
		})
	}

	sortCandidates(candidates)
	return dedupeCandidates(candidates)
}

func sortCandidates(candidates []Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && better(candidates[j], candidates[j-1]); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.StartSeconds < b.StartSeconds
}

// dedupeCandidates collapses placements that cover the same span, keeping the
// best-ranked one.
func dedupeCandidates(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, candidate := range candidates {
		duplicate := false
		for _, kept := range out {
			if kept.StartSeconds == candidate.StartSeconds && kept.EndSeconds == candidate.EndSeconds {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, candidate)
		}
	}
	return out
}

func tiedCandidates(candidates []Candidate, margin float64) []Candidate {
	best := candidates[0].Score
	var tied []Candidate
	for _, candidate := range candidates {
		if best-candidate.Score <= margin {
			tied = append(tied, candidate)
		}
	}
	return tied
}

func excerpt(words []lyrics.Word, first, last int) string {
	const maxWords = 20
	end := last + 1
	if end-first > maxWords {
		end = first + maxWords
	}
	text := ""
	for i := first; i < end; i++ {
		if text != "" {
			text += " "
		}
		text += words[i].Text
	}
	return text
}
