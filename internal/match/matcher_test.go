package match

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"songmill/internal/lyrics"
)

func timedWords(text string, startAt, perWord float64) []lyrics.Word {
	fields := strings.Fields(text)
	words := make([]lyrics.Word, len(fields))
	for i, field := range fields {
		start := startAt + float64(i)*perWord
		words[i] = lyrics.Word{Text: field, StartSeconds: start, EndSeconds: start + perWord}
	}
	return words
}

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"Hello!":    "hello",
		"café":      "cafe",
		"DON'T":     "don't",
		"'round":    "round",
		"...":       "",
		"baby,":     "baby",
		"(whispers": "whispers",
	}
	for input, want := range cases {
		if got := NormalizeToken(input); got != want {
			t.Fatalf("NormalizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTokenizeDropsEmptyTokens(t *testing.T) {
	tokens := Tokenize("Oh, baby -- don't go!")
	want := []string{"oh", "baby", "don't", "go"}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", tokens, want)
		}
	}
}

func TestFindExactFragment(t *testing.T) {
	matcher, err := New(Options{Threshold: 0.6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	words := timedWords("walking down the empty street i hear the midnight call again tonight", 10, 0.5)

	got, err := matcher.Find(context.Background(), "I hear the midnight call", words)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if math.Abs(got.StartSeconds-12.5) > 1e-9 {
		t.Fatalf("unexpected start: %f", got.StartSeconds)
	}
	if math.Abs(got.EndSeconds-15.0) > 1e-9 {
		t.Fatalf("unexpected end: %f", got.EndSeconds)
	}
	if got.Score != 1.0 {
		t.Fatalf("expected perfect score, got %f", got.Score)
	}
}

func TestFindToleratesGapsAndNoise(t *testing.T) {
	matcher, err := New(Options{Threshold: 0.6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Transcript has an extra filler word inside the fragment.
	words := timedWords("we were running oh through the fire together", 0, 0.4)

	got, err := matcher.Find(context.Background(), "running through the fire", words)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got.Score < 0.99 {
		t.Fatalf("gap-tolerant match should align every word, score %f", got.Score)
	}
	if math.Abs(got.StartSeconds-0.8) > 1e-9 {
		t.Fatalf("unexpected start: %f", got.StartSeconds)
	}
}

func TestFindToleratesMisheardLeadingWord(t *testing.T) {
	matcher, err := New(Options{Threshold: 0.6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Transcription misheard the fragment's first word.
	words := timedWords("she said yellow world through the fire tonight", 0, 0.5)

	got, err := matcher.Find(context.Background(), "hello world through the fire", words)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if math.Abs(got.Score-0.8) > 1e-9 {
		t.Fatalf("expected four of five words aligned, score %f", got.Score)
	}
	if math.Abs(got.StartSeconds-1.5) > 1e-9 {
		t.Fatalf("unexpected start: %f", got.StartSeconds)
	}
	if math.Abs(got.EndSeconds-3.5) > 1e-9 {
		t.Fatalf("unexpected end: %f", got.EndSeconds)
	}
}

func TestFindBelowThreshold(t *testing.T) {
	matcher, err := New(Options{Threshold: 0.6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	words := timedWords("completely different lyrics about other things entirely", 0, 0.5)

	if _, err := matcher.Find(context.Background(), "running through the fire", words); err == nil {
		t.Fatal("expected no-match error")
	}
}

func TestFindRejectsEmptyInputs(t *testing.T) {
	matcher, err := New(Options{Threshold: 0.6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := matcher.Find(context.Background(), "...", timedWords("some words", 0, 0.5)); err == nil {
		t.Fatal("expected error for unusable fragment")
	}
	if _, err := matcher.Find(context.Background(), "some words", nil); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

type fixedChoice struct {
	index int
	err   error
	calls int
}

func (f *fixedChoice) Choose(_ context.Context, _ string, candidates []Candidate) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if f.index >= len(candidates) {
		return len(candidates) - 1, nil
	}
	return f.index, nil
}

func repeatedChorus() []lyrics.Word {
	// The same chorus line sung twice, sixty seconds apart.
	first := timedWords("hold me closer in the dark", 30, 0.5)
	second := timedWords("hold me closer in the dark", 90, 0.5)
	return append(first, second...)
}

func TestFindDisambiguatesRepeatedChorus(t *testing.T) {
	chooser := &fixedChoice{index: 1}
	matcher, err := New(Options{Threshold: 0.6, Disambiguator: chooser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := matcher.Find(context.Background(), "hold me closer in the dark", repeatedChorus())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if chooser.calls != 1 {
		t.Fatalf("expected disambiguator consulted once, got %d", chooser.calls)
	}
	if math.Abs(got.StartSeconds-90) > 1e-9 {
		t.Fatalf("expected second occurrence chosen, got start %f", got.StartSeconds)
	}
}

func TestFindFallsBackWhenDisambiguatorFails(t *testing.T) {
	chooser := &fixedChoice{err: errors.New("model unavailable")}
	matcher, err := New(Options{Threshold: 0.6, Disambiguator: chooser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := matcher.Find(context.Background(), "hold me closer in the dark", repeatedChorus())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if math.Abs(got.StartSeconds-30) > 1e-9 {
		t.Fatalf("fallback must pick the earliest occurrence, got start %f", got.StartSeconds)
	}
}

func TestFindSingleCandidateSkipsDisambiguator(t *testing.T) {
	chooser := &fixedChoice{}
	matcher, err := New(Options{Threshold: 0.6, Disambiguator: chooser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	words := timedWords("one clear verse with no repeats anywhere", 5, 0.5)

	if _, err := matcher.Find(context.Background(), "clear verse with no repeats", words); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if chooser.calls != 0 {
		t.Fatalf("expected no disambiguation, got %d calls", chooser.calls)
	}
}
