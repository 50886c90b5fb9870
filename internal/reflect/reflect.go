package reflect

import (
	"fmt"

	"github.com/conductor-run/orchestrator/internal/kernel"
	"github.com/conductor-run/orchestrator/internal/models"
)

// Input bundles everything Reflection needs to score one iteration.
type Input struct {
	Plan                  *models.ExecutionPlan
	Results               []kernel.TaskExecutionResult
	FilesGeneratedTotal    int
	FilesGeneratedThisIter int
	TouchedPaths           []string
	SampleText             string
	RouteDecisionMode      string // "creator" | "implementer"
	Platform               string // "web" | "desktop" | ...
	TargetScore            float64
	Iteration              int
	MaxIterations          int
	ReplanDepth            int
	MaxReplanDepth         int
}

// completedPhases returns the set of phases present across results marked
// green/yellow (not failed/blocked).
func completedPhases(plan *models.ExecutionPlan, results []kernel.TaskExecutionResult) map[models.Phase]bool {
	completed := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Status == kernel.StatusGreen || r.Status == kernel.StatusYellow {
			completed[r.TaskID] = true
		}
	}
	out := make(map[models.Phase]bool)
	if plan == nil {
		return out
	}
	for _, t := range plan.Tasks {
		if completed[t.ID] {
			out[t.Phase] = true
		}
	}
	return out
}

var criticalPhases = []models.Phase{
	models.PhasePages, models.PhaseInteractions, models.PhaseStates, models.PhaseQuality,
}

func missingCriticalPhases(plan *models.ExecutionPlan, results []kernel.TaskExecutionResult) []models.Phase {
	planned := make(map[models.Phase]bool)
	if plan != nil {
		for _, t := range plan.Tasks {
			planned[t.Phase] = true
		}
	}
	done := completedPhases(plan, results)

	var missing []models.Phase
	for _, p := range criticalPhases {
		if planned[p] && !done[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

// Score computes the Reflection for one iteration per spec §4.5.
func Score(in Input) models.Reflection {
	strictRequired := in.RouteDecisionMode == "creator" && (in.Platform == "web" || in.Platform == "desktop")

	signals := DeriveSignals(in.TouchedPaths, in.SampleText)
	coverage := signals.Coverage()

	missing := missingCriticalPhases(in.Plan, in.Results)

	var failed, skipped, completed int
	for _, r := range in.Results {
		switch r.Status {
		case kernel.StatusFailed, kernel.StatusRed:
			failed++
		case kernel.StatusBlocked:
			skipped++
		default:
			completed++
		}
	}

	baseline := 58.0
	lowFileThreshold := 6
	lowFilePenaltyVal := 6.0
	if strictRequired {
		baseline = 80.0
		lowFileThreshold = 10
		lowFilePenaltyVal = 12.0
	}

	coveragePenalty := maxf(0, baseline-float64(coverage))
	lowFilePenalty := 0.0
	if in.FilesGeneratedTotal < lowFileThreshold {
		lowFilePenalty = lowFilePenaltyVal
	}

	completionRatio := 1.0
	if in.Plan != nil && len(in.Plan.Tasks) > 0 {
		completionRatio = float64(completed) / float64(len(in.Plan.Tasks))
	}

	demandMatch := clampRound(completionRatio*100-10*float64(len(missing)))
	consistency := clampRound(100 - 18*float64(failed) - 5*float64(skipped) - roundf64(0.25*coveragePenalty))
	codeQuality := clampRound(70 + minf(float64(in.FilesGeneratedTotal), 25) - 15*float64(failed) - coveragePenalty - lowFilePenalty - 8*float64(len(missing)))
	bestPractice := clampRound(75 + 4*minf(float64(completed), 5) - 12*float64(failed) - roundf64(0.7*coveragePenalty) - 8*float64(len(missing)))

	score := 0.3*float64(demandMatch) + 0.2*float64(consistency) + 0.25*float64(codeQuality) + 0.15*float64(bestPractice) + 0.1*float64(coverage)

	placeholders := HasPlaceholderContent(in.SampleText)
	standaloneHTMLOnly := isStandaloneHTMLOnly(in.TouchedPaths)

	strictGatePassed := true
	if strictRequired {
		strictGatePassed = !(!signals["dataSurface"] || !signals["formFlow"] || !signals["stateManagement"] ||
			!signals["multipleViews"] || !signals["routeStructure"] ||
			coverage < 80 || placeholders || standaloneHTMLOnly || in.FilesGeneratedThisIter == 0)
	}

	issues := buildIssues(in, signals, missing, strictRequired, placeholders, standaloneHTMLOnly)

	refl := models.Reflection{
		Score:                   round1(score),
		DemandMatch:             float64(demandMatch),
		Consistency:             float64(consistency),
		CodeQuality:             float64(codeQuality),
		BestPractice:            float64(bestPractice),
		SignalCoverage:          float64(coverage),
		Summary:                 summarize(score, len(issues)),
		Issues:                  issues,
		MissingCriticalPhases:   missing,
		StrictGatePassed:        strictGatePassed,
		StrictPrototypeRequired: strictRequired,
	}
	refl.ShouldIterate = !(score >= in.TargetScore && failed == 0 && strictGatePassed && len(missing) == 0)
	return refl
}

func buildIssues(in Input, signals Signals, missing []models.Phase, strict, placeholders, standaloneOnly bool) []models.ReflectionIssue {
	var issues []models.ReflectionIssue

	for _, r := range in.Results {
		if r.Status == kernel.StatusFailed || r.Status == kernel.StatusRed {
			issues = append(issues, models.ReflectionIssue{
				Severity:   "critical",
				Summary:    fmt.Sprintf("task %s failed", r.TaskID),
				Suggestion: "retry the task or replan with narrower scope",
			})
		}
	}
	for _, p := range missing {
		issues = append(issues, models.ReflectionIssue{
			Severity:   "critical",
			Summary:    fmt.Sprintf("critical phase %q did not complete", p),
			Suggestion: fmt.Sprintf("schedule the %q phase before accepting this iteration", p),
		})
	}
	if strict {
		for _, name := range signalOrder {
			if !signals[name] {
				issues = append(issues, models.ReflectionIssue{
					Severity:   "warning",
					Summary:    fmt.Sprintf("signal %q below threshold in strict mode", name),
					Suggestion: fmt.Sprintf("add concrete %s implementation", name),
				})
			}
		}
	}
	if standaloneOnly {
		issues = append(issues, models.ReflectionIssue{
			Severity:   "warning",
			Summary:    "output is standalone HTML only",
			Suggestion: "generate a componentized project structure instead of a single HTML file",
		})
	}
	if placeholders {
		issues = append(issues, models.ReflectionIssue{
			Severity:   "warning",
			Summary:    "placeholder content detected in generated artifacts",
			Suggestion: "replace placeholder text with real content",
		})
	}
	if in.FilesGeneratedThisIter == 0 {
		issues = append(issues, models.ReflectionIssue{
			Severity:   "info",
			Summary:    "no files changed this iteration",
			Suggestion: "verify the agent is making forward progress",
		})
	}
	return issues
}

func isStandaloneHTMLOnly(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if len(p) < 5 || p[len(p)-5:] != ".html" {
			return false
		}
	}
	return true
}

func summarize(score float64, issueCount int) string {
	return fmt.Sprintf("score=%.1f issues=%d", score, issueCount)
}

// Decide applies the Iteration Controller's accept/iterate/abort rule and,
// on iterate, populates a ReplanDiagnosticBundle.
func Decide(in Input, refl models.Reflection) (models.IterationDecision, *models.ReplanDiagnosticBundle) {
	anyFailed := false
	for _, r := range in.Results {
		if r.Status == kernel.StatusFailed || r.Status == kernel.StatusRed {
			anyFailed = true
			break
		}
	}

	if refl.Score >= in.TargetScore && !anyFailed && refl.StrictGatePassed && len(refl.MissingCriticalPhases) == 0 {
		return models.DecisionAccept, nil
	}

	if in.Iteration < in.MaxIterations && in.ReplanDepth <= in.MaxReplanDepth {
		bundle := &models.ReplanDiagnosticBundle{
			Iteration:      in.Iteration,
			MaxIterations:  in.MaxIterations,
			ReplanDepth:    in.ReplanDepth,
			MaxReplanDepth: in.MaxReplanDepth,
			Issues:         topIssues(refl.Issues, 3),
			Summary:        refl.Summary,
			NextTaskHints:  topHints(refl.MissingCriticalPhases, 3),
			Brainstorm:     in.Plan != nil && in.Plan.Metadata.RequirementStrategy == models.StrategyBrainstorm,
			StrictGate:     refl.StrictPrototypeRequired,
		}
		return models.DecisionIterate, bundle
	}

	return models.DecisionAbort, &models.ReplanDiagnosticBundle{
		Iteration:      in.Iteration,
		MaxIterations:  in.MaxIterations,
		ReplanDepth:    in.ReplanDepth,
		MaxReplanDepth: in.MaxReplanDepth,
		Issues:         topIssues(refl.Issues, 3),
		Summary:        refl.Summary,
	}
}

func topIssues(issues []models.ReflectionIssue, n int) []models.ReflectionIssue {
	if len(issues) <= n {
		return issues
	}
	return issues[:n]
}

func topHints(phases []models.Phase, n int) []string {
	out := make([]string, 0, n)
	for i, p := range phases {
		if i >= n {
			break
		}
		out = append(out, fmt.Sprintf("complete the %q phase", p))
	}
	return out
}

// RewriteUserMessage appends the replan annotations described in §4.5 to the
// original user message.
func RewriteUserMessage(original string, bundle models.ReplanDiagnosticBundle) string {
	msg := fmt.Sprintf("%s [AutonomousIteration:%d] [ReplanDepth:%d/%d]", original, bundle.Iteration, bundle.ReplanDepth, bundle.MaxReplanDepth)
	for _, issue := range bundle.Issues {
		msg += fmt.Sprintf(" [Issue: %s -> %s]", issue.Summary, issue.Suggestion)
	}
	for _, hint := range bundle.NextTaskHints {
		msg += fmt.Sprintf(" [NextTask: %s]", hint)
	}
	if bundle.Brainstorm {
		msg += " [RequirementBrainstorm]"
	}
	if bundle.StrictGate {
		msg += " [RichPrototypeQualityGate]"
	}
	return msg
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func roundf64(f float64) float64 {
	return float64(roundf(f))
}

func clampRound(f float64) int {
	return clampInt(roundf(f), 0, 100)
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
