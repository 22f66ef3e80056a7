package lyrics

import "fmt"

// MaterializeClip projects track-time lines into one clip's local time. A
// line is included when it overlaps the clip at all (start before the clip
// ends and end after it starts); zero-overlap touching at an edge does not
// count. Included lines are clamped to the clip, rebased so the clip starts
// at zero, and renumbered densely.
func MaterializeClip(lines []Line, clipStart, clipEnd float64) ([]ClipLine, error) {
	if clipEnd <= clipStart {
		return nil, fmt.Errorf("invalid clip range [%.3f, %.3f)", clipStart, clipEnd)
	}

	var out []ClipLine
	for _, line := range lines {
		if line.StartSeconds >= clipEnd || line.EndSeconds <= clipStart {
			continue
		}

		start := line.StartSeconds
		end := line.EndSeconds
		startsBefore := start < clipStart
		endsAfter := end > clipEnd
		if startsBefore {
			start = clipStart
		}
		if endsAfter {
			end = clipEnd
		}

		out = append(out, ClipLine{
			Index:            len(out),
			StartSeconds:     start - clipStart,
			EndSeconds:       end - clipStart,
			Text:             line.Text,
			StartsBeforeClip: startsBefore,
			EndsAfterClip:    endsAfter,
			Words:            rebaseWords(line.Words, clipStart, clipEnd),
		})
	}
	return out, nil
}

// rebaseWords keeps only words overlapping the clip and shifts them to clip
// time, clamping the edge words the same way lines are clamped.
func rebaseWords(words []Word, clipStart, clipEnd float64) []Word {
	if len(words) == 0 {
		return nil
	}
	var out []Word
	for _, word := range words {
		if word.StartSeconds >= clipEnd || word.EndSeconds <= clipStart {
			continue
		}
		start := word.StartSeconds
		end := word.EndSeconds
		if start < clipStart {
			start = clipStart
		}
		if end > clipEnd {
			end = clipEnd
		}
		out = append(out, Word{
			Text:         word.Text,
			StartSeconds: start - clipStart,
			EndSeconds:   end - clipStart,
		})
	}
	return out
}
