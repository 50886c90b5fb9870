// Package search implements the Search-Augmented Repair Guidance (spec
// §4.10): it scores candidate documentation links against a repairable
// error list and produces a deterministically ordered guidance block.
package search

import (
	"sort"
	"strings"

	"github.com/conductor-run/orchestrator/internal/models"
)

// SourceType distinguishes official documentation from community content;
// official always outranks community at equal token overlap.
type SourceType string

const (
	SourceOfficial  SourceType = "official"
	SourceCommunity SourceType = "community"
)

// Confidence buckets a scored candidate for display.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Candidate is one search result before scoring.
type Candidate struct {
	URL      string
	Hostname string
	Title    string
	Snippet  string
	Source   SourceType
}

// ScoredCandidate is a Candidate after scoring against a query.
type ScoredCandidate struct {
	Candidate
	Score      float64
	Confidence Confidence
}

// BuildQuery constructs the search query from a repairable error list: the
// distinct error categories and the first few tokens of each message,
// joined into a single query string.
func BuildQuery(errs []models.ParsedError) string {
	var parts []string
	seenCategory := make(map[models.ErrorCategory]bool)
	for _, e := range errs {
		if !seenCategory[e.Category] {
			seenCategory[e.Category] = true
			parts = append(parts, string(e.Category))
		}
		parts = append(parts, leadingTokens(e.Message, 6)...)
	}
	return strings.Join(parts, " ")
}

func leadingTokens(s string, n int) []string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return fields
}

// FilterByAllowlist keeps only candidates whose hostname exactly matches an
// entry in allowlist.
func FilterByAllowlist(candidates []Candidate, allowlist []string) []Candidate {
	allowed := make(map[string]bool, len(allowlist))
	for _, h := range allowlist {
		allowed[h] = true
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if allowed[c.Hostname] {
			out = append(out, c)
		}
	}
	return out
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		out[t] = true
	}
	return out
}

func tokenOverlap(query, text string) float64 {
	q := tokenSet(query)
	t := tokenSet(text)
	if len(q) == 0 || len(t) == 0 {
		return 0
	}
	overlap := 0
	for tok := range q {
		if t[tok] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(q))
}

// Score ranks candidates against query: official sources always outscore
// community sources, with token-overlap breaking ties within a source
// type. Output is deterministic: sorted by score descending, then URL
// ascending.
func Score(query string, candidates []Candidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		overlap := tokenOverlap(query, c.Title+" "+c.Snippet)
		base := 0.0
		if c.Source == SourceOfficial {
			base = 1.0
		}
		score := base + overlap

		confidence := ConfidenceLow
		switch {
		case c.Source == SourceOfficial && overlap >= 0.5:
			confidence = ConfidenceHigh
		case c.Source == SourceOfficial || overlap >= 0.5:
			confidence = ConfidenceMedium
		}

		scored = append(scored, ScoredCandidate{Candidate: c, Score: score, Confidence: confidence})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].URL < scored[j].URL
	})

	return scored
}

// RenderSummary builds the optional visual summary block, truncated to
// maxChars.
func RenderSummary(scored []ScoredCandidate, maxChars int) string {
	var b strings.Builder
	b.WriteString("[SearchGuidance]\n")
	for _, s := range scored {
		b.WriteString("- [" + string(s.Confidence) + "] " + s.Title + " " + s.URL + "\n")
	}
	out := b.String()
	if maxChars > 0 && len(out) > maxChars {
		return out[:maxChars]
	}
	return out
}
