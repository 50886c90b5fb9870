package planner

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// detailScore implements spec.md §4.1's brainstorm-vs-direct heuristic: a
// unit count over word-segmented text (CJK characters counted individually,
// Latin text counted per word-boundary token), plus separator and marker
// bonuses.
func detailScore(message string) int {
	units := countUnits(message)

	score := 0
	if units >= 18 {
		score++
	}
	if units >= 32 {
		score++
	}
	if countSeparators(message) >= 2 {
		score++
	}
	if strings.ContainsAny(message, ":：") {
		score++
	}
	if hasBulletLine(message) {
		score++
	}
	return score
}

// countUnits walks word boundaries via uax29's Unicode segmenter so a CJK
// run of characters and a run of Latin words are weighted consistently: a
// CJK segment contributes one unit per rune (no word-break boundaries exist
// between ideographs), a Latin/number token contributes one unit, and
// whitespace/punctuation-only segments contribute nothing.
func countUnits(message string) int {
	units := 0
	seg := words.FromString(message)
	for seg.Next() {
		token := seg.Value()
		if !hasLetterOrDigit(token) {
			continue
		}
		if isCJKToken(token) {
			for _, r := range token {
				if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
					units++
				}
			}
			continue
		}
		units++
	}
	return units
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isCJKToken(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func countSeparators(message string) int {
	count := 0
	for _, r := range message {
		switch r {
		case ',', '，', ';', '；', '\n':
			count++
		}
	}
	return count
}

func hasBulletLine(message string) bool {
	for _, line := range strings.Split(message, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "•") {
			return true
		}
		if isNumberedBullet(trimmed) {
			return true
		}
	}
	return false
}

// isNumberedBullet reports whether line starts with "<digits>." or
// "<digits>)" followed by a space, e.g. "1. Add a login page".
func isNumberedBullet(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return false
	}
	if line[i] != '.' && line[i] != ')' {
		return false
	}
	return i+1 < len(line) && line[i+1] == ' '
}
