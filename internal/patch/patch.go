// Package patch implements the Apply-Diff algorithm (spec §4.9): a
// SEARCH/REPLACE block patcher with a strict-match, whitespace-normalized,
// then full-file-replace fallback chain, and diagnostic hint generation
// when no match is found.
package patch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Block is one SEARCH/REPLACE pair extracted from a patch.
type Block struct {
	Search  string
	Replace string
}

var blockPattern = regexp.MustCompile(`(?s)<<<<<<< SEARCH\n(.*?)\n=======\n(.*?)\n>>>>>>> REPLACE`)

// ParseBlocks extracts every SEARCH/REPLACE block from a raw patch string,
// in order of appearance.
func ParseBlocks(rawPatch string) []Block {
	matches := blockPattern.FindAllStringSubmatch(rawPatch, -1)
	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, Block{Search: m[1], Replace: m[2]})
	}
	return blocks
}

// Hint is one candidate window surfaced when a normalized match fails.
type Hint struct {
	LineStart int
	LineEnd   int
	Snippet   string
}

// sentinel reason strings, returned as the error message so callers can
// match on them directly (mirrors spec's named failure codes).
const (
	ReasonAmbiguousMatch      = "AMBIGUOUS_MATCH"
	ReasonNoMatchNormalized   = "NO_MATCH_NORMALIZED"
	ReasonNoMatch             = "NO_MATCH"
)

// ApplyError carries the failure reason plus, for NO_MATCH_NORMALIZED,
// diagnostic hints.
type ApplyError struct {
	Reason string
	Hints  []Hint
}

func (e *ApplyError) Error() string { return e.Reason }

func normalizeEOL(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// Apply runs every block in the patch against content in order, returning
// the fully patched content. normalizeWhitespace enables the normalized
// line-match fallback stage.
func Apply(filePath, content, rawPatch string, normalizeWhitespace bool) (string, error) {
	content = normalizeEOL(content)
	blocks := ParseBlocks(normalizeEOL(rawPatch))
	if len(blocks) == 0 {
		return content, nil
	}

	var lastErr error
	for i, block := range blocks {
		search := normalizeEOL(block.Search)
		replace := normalizeEOL(block.Replace)

		next, err := applyBlock(content, search, replace, normalizeWhitespace)
		if err != nil {
			lastErr = err
			if len(blocks) == 1 {
				if fallback, ok := tryFullFileFallback(content, replace); ok {
					return fallback, nil
				}
			}
			return content, fmt.Errorf("block %d: %w", i, err)
		}
		content = next
	}

	return content, lastErr
}

func applyBlock(content, search, replace string, normalizeWhitespace bool) (string, error) {
	count := strings.Count(content, search)
	switch {
	case count == 1:
		idx := strings.Index(content, search)
		return content[:idx] + replace + content[idx+len(search):], nil
	case count > 1:
		return content, &ApplyError{Reason: ReasonAmbiguousMatch}
	}

	if !normalizeWhitespace {
		return content, &ApplyError{Reason: ReasonNoMatch}
	}

	return applyNormalizedMatch(content, search, replace)
}

func collapseWhitespace(line string) string {
	fields := strings.Fields(line)
	return strings.Join(fields, " ")
}

func applyNormalizedMatch(content, search, replace string) (string, error) {
	contentLines := strings.Split(content, "\n")
	searchLines := strings.Split(search, "\n")
	replaceLines := strings.Split(replace, "\n")

	normalizedSearch := make([]string, len(searchLines))
	for i, l := range searchLines {
		normalizedSearch[i] = collapseWhitespace(l)
	}

	var matchStarts []int
	for start := 0; start+len(searchLines) <= len(contentLines); start++ {
		matched := true
		for j, ns := range normalizedSearch {
			if collapseWhitespace(contentLines[start+j]) != ns {
				matched = false
				break
			}
		}
		if matched {
			matchStarts = append(matchStarts, start)
		}
	}

	switch len(matchStarts) {
	case 1:
		start := matchStarts[0]
		end := start + len(searchLines)
		spliced := append([]string{}, contentLines[:start]...)
		spliced = append(spliced, replaceLines...)
		spliced = append(spliced, contentLines[end:]...)
		return strings.Join(spliced, "\n"), nil
	case 0:
		return content, &ApplyError{
			Reason: ReasonNoMatchNormalized,
			Hints:  diagnosticHints(contentLines, searchLines),
		}
	default:
		return content, &ApplyError{Reason: ReasonAmbiguousMatch}
	}
}

// diagnosticHints ranks every sliding window of len(searchLines) by
// token-overlap score against the search block and returns the top 3.
func diagnosticHints(contentLines, searchLines []string) []Hint {
	searchTokens := tokenSet(strings.Join(searchLines, "\n"))
	windowSize := len(searchLines)
	if windowSize == 0 || windowSize > len(contentLines) {
		return nil
	}

	type scored struct {
		start int
		score float64
	}
	var candidates []scored
	for start := 0; start+windowSize <= len(contentLines); start++ {
		window := strings.Join(contentLines[start:start+windowSize], "\n")
		candidates = append(candidates, scored{start: start, score: tokenOverlap(searchTokens, tokenSet(window))})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].start < candidates[j].start
	})

	n := 3
	if len(candidates) < n {
		n = len(candidates)
	}

	hints := make([]Hint, 0, n)
	for i := 0; i < n; i++ {
		start := candidates[i].start
		end := start + windowSize - 1
		hints = append(hints, Hint{
			LineStart: start + 1,
			LineEnd:   end + 1,
			Snippet:   snippetWithLineNumbers(contentLines[start:end+1], start+1),
		})
	}
	return hints
}

func snippetWithLineNumbers(lines []string, firstLine int) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d: %s\n", firstLine+i, l)
	}
	return b.String()
}

func tokenSet(s string) map[string]bool {
	tokens := strings.Fields(s)
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
	}
	return out
}

func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for t := range a {
		if b[t] {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

var fullFileHeuristic = regexp.MustCompile(`import|export default|function [A-Z]|const [A-Z]|return \(|<div|<main|<section`)

// tryFullFileFallback applies §4.9 step 5: when the replacement text is at
// least 35% of the original file's size and looks like a complete module
// (matches the full-file heuristic), treat it as a whole-file replacement.
func tryFullFileFallback(content, replace string) (string, bool) {
	if len(content) > 0 && float64(len(replace))/float64(len(content)) < 0.35 {
		return "", false
	}
	if !fullFileHeuristic.MatchString(replace) {
		return "", false
	}
	return replace, true
}
