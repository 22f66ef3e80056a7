package lyrics

import (
	"math"
	"testing"
)

func TestMaterializeClipSelectsOverlappingLines(t *testing.T) {
	lines := []Line{
		{Index: 0, StartSeconds: 0, EndSeconds: 5, Text: "before the clip"},
		{Index: 1, StartSeconds: 8, EndSeconds: 12, Text: "cut at the front"},
		{Index: 2, StartSeconds: 13, EndSeconds: 17, Text: "fully inside"},
		{Index: 3, StartSeconds: 19, EndSeconds: 24, Text: "cut at the back"},
		{Index: 4, StartSeconds: 25, EndSeconds: 30, Text: "after the clip"},
	}

	out, err := MaterializeClip(lines, 10, 20)
	if err != nil {
		t.Fatalf("MaterializeClip failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 lines, got %d: %#v", len(out), out)
	}

	front := out[0]
	if front.Text != "cut at the front" || !front.StartsBeforeClip || front.EndsAfterClip {
		t.Fatalf("unexpected front line: %#v", front)
	}
	if front.StartSeconds != 0 || math.Abs(front.EndSeconds-2) > 1e-9 {
		t.Fatalf("front line timing wrong: %#v", front)
	}

	middle := out[1]
	if middle.StartsBeforeClip || middle.EndsAfterClip {
		t.Fatalf("interior line flagged: %#v", middle)
	}
	if math.Abs(middle.StartSeconds-3) > 1e-9 || math.Abs(middle.EndSeconds-7) > 1e-9 {
		t.Fatalf("interior line timing wrong: %#v", middle)
	}

	back := out[2]
	if !back.EndsAfterClip || back.StartsBeforeClip {
		t.Fatalf("unexpected back line: %#v", back)
	}
	if math.Abs(back.StartSeconds-9) > 1e-9 || math.Abs(back.EndSeconds-10) > 1e-9 {
		t.Fatalf("back line timing wrong: %#v", back)
	}

	for i, line := range out {
		if line.Index != i {
			t.Fatalf("expected dense renumbering, got index %d at position %d", line.Index, i)
		}
	}
}

func TestMaterializeClipExcludesEdgeTouches(t *testing.T) {
	lines := []Line{
		{StartSeconds: 5, EndSeconds: 10, Text: "ends exactly at start"},
		{StartSeconds: 20, EndSeconds: 25, Text: "starts exactly at end"},
	}
	out, err := MaterializeClip(lines, 10, 20)
	if err != nil {
		t.Fatalf("MaterializeClip failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("zero-overlap lines must be excluded, got %#v", out)
	}
}

func TestMaterializeClipSpanningLine(t *testing.T) {
	lines := []Line{{StartSeconds: 5, EndSeconds: 25, Text: "spans everything"}}
	out, err := MaterializeClip(lines, 10, 20)
	if err != nil {
		t.Fatalf("MaterializeClip failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected spanning line included, got %d", len(out))
	}
	line := out[0]
	if !line.StartsBeforeClip || !line.EndsAfterClip {
		t.Fatalf("spanning line must carry both flags: %#v", line)
	}
	if line.StartSeconds != 0 || math.Abs(line.EndSeconds-10) > 1e-9 {
		t.Fatalf("spanning line timing wrong: %#v", line)
	}
}

func TestMaterializeClipRebasesWords(t *testing.T) {
	lines := []Line{{
		StartSeconds: 8,
		EndSeconds:   14,
		Text:         "three timed words",
		Words: []Word{
			{Text: "three", StartSeconds: 8, EndSeconds: 9.5},
			{Text: "timed", StartSeconds: 9.5, EndSeconds: 11},
			{Text: "words", StartSeconds: 11, EndSeconds: 14},
		},
	}}

	out, err := MaterializeClip(lines, 10, 20)
	if err != nil {
		t.Fatalf("MaterializeClip failed: %v", err)
	}
	words := out[0].Words
	if len(words) != 2 {
		t.Fatalf("expected pre-clip word dropped, got %#v", words)
	}
	if words[0].Text != "timed" || words[0].StartSeconds != 0 || math.Abs(words[0].EndSeconds-1) > 1e-9 {
		t.Fatalf("first word wrong: %#v", words[0])
	}
	if words[1].Text != "words" || math.Abs(words[1].StartSeconds-1) > 1e-9 {
		t.Fatalf("second word wrong: %#v", words[1])
	}
}

func TestMaterializeClipRejectsInvertedRange(t *testing.T) {
	if _, err := MaterializeClip(nil, 20, 10); err == nil {
		t.Fatal("expected error for inverted clip range")
	}
}

func TestWordsRoundTrip(t *testing.T) {
	words := []Word{{Text: "hey", StartSeconds: 1, EndSeconds: 1.4}}
	encoded, err := EncodeWords(words)
	if err != nil {
		t.Fatalf("EncodeWords failed: %v", err)
	}
	decoded, err := DecodeWords(encoded)
	if err != nil {
		t.Fatalf("DecodeWords failed: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != words[0] {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}

	empty, err := EncodeWords(nil)
	if err != nil || empty != "" {
		t.Fatalf("expected empty encoding, got %q err=%v", empty, err)
	}
}
