package llm

import (
	"context"
	"fmt"
	"strings"

	"songmill/internal/match"
)

// disambiguationPrompt instructs the model to pick which transcript placement
// a lyric fragment refers to.
const disambiguationPrompt = `You resolve ambiguous lyric placements. You are given a lyric fragment and a numbered list of places it appears in a song transcript, each with its time span and surrounding words. Songs repeat choruses, so several placements can look identical; prefer the one whose surrounding words continue the fragment most naturally. Respond with JSON only: {"choice": <zero-based index>, "reason": "<short explanation>"}.`

// Chooser adapts the chat client to the matcher's disambiguation hook.
type Chooser struct {
	client *Client
}

// NewChooser wraps a configured client. Returns nil when the client cannot
// make requests, which the matcher treats as "no disambiguator".
func NewChooser(client *Client) *Chooser {
	if client == nil || !client.Configured() {
		return nil
	}
	return &Chooser{client: client}
}

// Choose asks the model which candidate placement matches the fragment.
func (c *Chooser) Choose(ctx context.Context, fragment string, candidates []match.Candidate) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Fragment: %q\n\nPlacements:\n", fragment)
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "%d. [%.1fs - %.1fs] score %.2f: %q\n",
			i, candidate.StartSeconds, candidate.EndSeconds, candidate.Score, candidate.Excerpt)
	}

	content, err := c.client.CompleteJSON(ctx, disambiguationPrompt, b.String())
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Choice int    `json:"choice"`
		Reason string `json:"reason"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return 0, fmt.Errorf("llm disambiguate: parse payload: %w", err)
	}
	if parsed.Choice < 0 || parsed.Choice >= len(candidates) {
		return 0, fmt.Errorf("llm disambiguate: choice %d out of range", parsed.Choice)
	}
	return parsed.Choice, nil
}
