// Package lyrics models timed lyric lines and materializes clip-relative
// views of them.
package lyrics

import (
	"encoding/json"
	"fmt"
)

// Word is a single timed word within a line, in the same time base as the
// line that owns it.
type Word struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
}

// Line is a timed lyric line in absolute track time.
type Line struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
	Text         string  `json:"text"`
	Words        []Word  `json:"words,omitempty"`
}

// ClipLine is a lyric line rebased to a clip's local time. Lines cut by a
// clip edge carry truncation flags so renderers can mark partial lines.
type ClipLine struct {
	Index            int     `json:"index"`
	StartSeconds     float64 `json:"start"`
	EndSeconds       float64 `json:"end"`
	Text             string  `json:"text"`
	StartsBeforeClip bool    `json:"starts_before_clip"`
	EndsAfterClip    bool    `json:"ends_after_clip"`
	Words            []Word  `json:"words,omitempty"`
}

// EncodeWords serializes a word list for storage. Empty lists encode as "".
func EncodeWords(words []Word) (string, error) {
	if len(words) == 0 {
		return "", nil
	}
	data, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("encode words: %w", err)
	}
	return string(data), nil
}

// DecodeWords deserializes a stored word list. "" decodes to nil.
func DecodeWords(raw string) ([]Word, error) {
	if raw == "" {
		return nil, nil
	}
	var words []Word
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}
	return words, nil
}
