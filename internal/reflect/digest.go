package reflect

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/repair"
)

// BuildDigest renders a Reflection (and, if the self-repair loop ran, its
// Outcome) into a Markdown report suitable for a run's final summary or a
// replayed log entry.
func BuildDigest(refl models.Reflection, outcome *repair.Outcome) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Reflection\n\n")
	fmt.Fprintf(&sb, "- **Score**: %.1f\n", refl.Score)
	fmt.Fprintf(&sb, "- **Demand match**: %.1f\n", refl.DemandMatch)
	fmt.Fprintf(&sb, "- **Consistency**: %.1f\n", refl.Consistency)
	fmt.Fprintf(&sb, "- **Code quality**: %.1f\n", refl.CodeQuality)
	fmt.Fprintf(&sb, "- **Best practice**: %.1f\n", refl.BestPractice)
	fmt.Fprintf(&sb, "- **Signal coverage**: %.1f\n", refl.SignalCoverage)
	sb.WriteString("\n")

	if refl.Summary != "" {
		sb.WriteString(refl.Summary)
		sb.WriteString("\n\n")
	}

	if len(refl.Issues) > 0 {
		sb.WriteString("### Issues\n\n")
		for _, issue := range refl.Issues {
			fmt.Fprintf(&sb, "- **[%s]** %s -> %s\n", issue.Severity, issue.Summary, issue.Suggestion)
		}
		sb.WriteString("\n")
	}

	if len(refl.MissingCriticalPhases) > 0 {
		sb.WriteString("### Missing critical phases\n\n")
		for _, phase := range refl.MissingCriticalPhases {
			fmt.Fprintf(&sb, "- %s\n", phase)
		}
		sb.WriteString("\n")
	}

	if outcome != nil {
		sb.WriteString("## Self-repair\n\n")
		fmt.Fprintf(&sb, "- **Succeeded**: %v\n", outcome.Success)
		fmt.Fprintf(&sb, "- **Attempts**: %d\n", outcome.Attempts)
		if len(outcome.LastErrors) > 0 {
			sb.WriteString("- **Remaining errors**:\n")
			for _, e := range outcome.LastErrors {
				fmt.Fprintf(&sb, "  - `%s`: %s\n", e.Category, e.Message)
			}
		}
	}

	return sb.String()
}

// RenderHTML converts a digest's Markdown into HTML, for surfaces (e.g. a
// web viewer of replayed runs) that can't render Markdown directly.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("digest: render markdown: %w", err)
	}
	return buf.String(), nil
}
