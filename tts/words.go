package tts

import (
	"strings"
	"time"
)

// Tokenize splits text into whitespace-delimited words. The word spans used
// for highlighting are built from exactly this tokenization.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// EstimateSpans allocates the total audio duration across the words of text
// proportionally to their character length. This is the fallback for engines
// that return only a finished artifact with no per-word timing: highlight
// timing will drift from actual phonetic timing, especially for
// punctuation-heavy or numeric text.
//
// Lengths are measured against the normalized text, one separator per word
// gap. The boundary between word k and word k+1 sits at
//
//	total * cumulativeChars(k) / totalChars
//
// where cumulativeChars(k) counts words 0..k plus the k separators before
// them, and totalChars is the length of the words joined by single spaces.
// Computed in integer arithmetic, so consecutive spans are contiguous and
// the final span ends exactly at total.
func EstimateSpans(text string, total time.Duration) []WordSpan {
	words := Tokenize(text)
	if len(words) == 0 || total <= 0 {
		return nil
	}

	totalChars := len([]rune(strings.Join(words, " ")))
	if totalChars == 0 {
		return nil
	}

	spans := make([]WordSpan, len(words))
	cum := 0
	prev := time.Duration(0)
	for i, w := range words {
		if i > 0 {
			cum++
		}
		cum += len([]rune(w))
		end := total * time.Duration(cum) / time.Duration(totalChars)
		if i == len(words)-1 {
			end = total
		}
		spans[i] = WordSpan{Index: i, Start: prev, End: end}
		prev = end
	}
	return spans
}

// ValidSpans checks the invariants the synchronizer depends on: one span per
// word, non-overlapping, monotonically increasing, ending at total.
func ValidSpans(spans []WordSpan, wordCount int, total time.Duration) bool {
	if len(spans) != wordCount {
		return false
	}
	if len(spans) == 0 {
		return true
	}
	prev := time.Duration(0)
	for i, s := range spans {
		if s.Index != i || s.Start != prev || s.End < s.Start {
			return false
		}
		prev = s.End
	}
	return spans[len(spans)-1].End == total
}
