package repair

import (
	"fmt"
	"strings"

	"github.com/conductor-run/orchestrator/internal/models"
)

// missingDependencyBlock renders Phase 0's missing-dependency context.
func missingDependencyBlock(missing []MissingDependency) string {
	var b strings.Builder
	b.WriteString("[MissingDependencies]\n")
	for _, m := range missing {
		kind := "prod"
		if m.Dev {
			kind = "dev"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", m.Package, kind)
	}
	return b.String()
}

// preBuildFindingsBlock renders Phase 1's static-check findings.
func preBuildFindingsBlock(findings []models.ParsedError) string {
	var b strings.Builder
	b.WriteString("[PreBuildFindings]\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s: %s\n", f.Category, f.Message)
	}
	return b.String()
}

// strategyContextBlock renders the strategy-specific immutable context
// block appended to a Phase 2 repair invocation, per §4.7 step 7.
func strategyContextBlock(strategy models.StrategyProfile, errs []models.ParsedError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[RepairStrategy:%s]\n", strategy)
	for _, e := range errs {
		fmt.Fprintf(&b, "- %s:%d:%d %s: %s\n", e.File, e.Line, e.Column, e.Category, e.Message)
	}
	return b.String()
}
