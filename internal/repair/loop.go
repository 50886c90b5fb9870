package repair

import (
	"context"
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
)

// DefaultMaxAttempts matches §4.7's "max attempts, default 5".
const DefaultMaxAttempts = 5

// Validator runs the Phase 2 L0/L1/L2 validation stack against the
// materialized validation directory and returns every diagnostic it
// produced, already mapped into ParsedError. A validator that only
// implements a subset of L0/L1/build/L2 may return early once an earlier
// stage fails, per §4.7's "gated on L0/L1 passing" rule — that gating is
// the Validator implementation's responsibility, not the loop's.
type Validator interface {
	Validate(ctx context.Context) ([]models.ParsedError, error)
}

// PreBuildChecker runs Phase 1's template-specific quick validators.
type PreBuildChecker interface {
	Check(ctx context.Context) ([]models.ParsedError, error)
}

// Repairer invokes the LLM repair iteration with a set of immutable
// context blocks appended to the repair prompt.
type Repairer interface {
	Repair(ctx context.Context, contextBlocks []string) error
}

// SessionFiles abstracts the session's current file set so the loop can
// capture and restore RepairSnapshots without owning storage itself.
type SessionFiles interface {
	Files() map[string]models.StoredFile
	SetFiles(map[string]models.StoredFile)
	Contents() map[string]string // path -> content, for dependency scanning
	InstalledPackages() map[string]bool
}

// Loop runs the self-repair loop (spec §4.7) to completion or exhaustion.
type Loop struct {
	Session     SessionFiles
	PreBuild    PreBuildChecker
	Validator   Validator
	Repairer    Repairer
	Search      SearchGuidance // optional; nil disables §4.10 guidance blocks
	MaxAttempts int
	Now         func() time.Time
}

// SearchGuidance builds the optional search-augmented repair guidance block
// (§4.10), used once a repair loop has been stuck on the same fingerprint
// for three or more consecutive attempts.
type SearchGuidance interface {
	Guidance(ctx context.Context, errs []models.ParsedError) (string, error)
}

// Outcome summarizes how the loop terminated.
type Outcome struct {
	Success    bool
	Attempts   int
	LastErrors []models.ParsedError
}

// Run executes the loop until no repairable errors remain, the attempt
// budget is exhausted, or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}

	tracker := &FingerprintTracker{}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempt - 1}, err
		}

		// Phase 0: dependency scan.
		missing := FindMissingDependencies(l.Session.Contents(), l.Session.InstalledPackages())
		if len(missing) > 0 {
			if err := l.Repairer.Repair(ctx, []string{missingDependencyBlock(missing)}); err != nil {
				return Outcome{Attempts: attempt}, err
			}
			continue
		}

		// Phase 1: pre-build static checks.
		if l.PreBuild != nil {
			findings, err := l.PreBuild.Check(ctx)
			if err != nil {
				return Outcome{Attempts: attempt}, err
			}
			if len(findings) > 0 {
				if err := l.Repairer.Repair(ctx, []string{preBuildFindingsBlock(findings)}); err != nil {
					return Outcome{Attempts: attempt}, err
				}
				continue
			}
		}

		// Phase 2: L0/L1/L2 validation stack.
		rawErrors, err := l.Validator.Validate(ctx)
		if err != nil {
			return Outcome{Attempts: attempt}, err
		}

		repairable := RepairableErrors(rawErrors)
		if len(repairable) == 0 {
			return Outcome{Success: true, Attempts: attempt, LastErrors: rawErrors}, nil
		}

		fingerprint := Fingerprint(repairable)
		repeatCount := tracker.Observe(fingerprint)
		strategy := StrategyForRepeatCount(repeatCount)

		snapshot := Capture(l.Session.Files(), fingerprint, len(repairable), now())

		blocks := []string{strategyContextBlock(strategy, repairable)}
		if SameFingerprintFailures(repeatCount) && l.Search != nil {
			if guidance, err := l.Search.Guidance(ctx, repairable); err == nil && guidance != "" {
				blocks = append(blocks, guidance)
			}
		}

		if err := l.Repairer.Repair(ctx, blocks); err != nil {
			return Outcome{Attempts: attempt, LastErrors: repairable}, err
		}

		nextErrors, err := l.Validator.Validate(ctx)
		if err != nil {
			return Outcome{Attempts: attempt, LastErrors: repairable}, err
		}
		nextRepairable := RepairableErrors(nextErrors)

		if ShouldRollback(snapshot, len(nextRepairable)) {
			l.Session.SetFiles(Rollback(snapshot))
		}

		if len(nextRepairable) == 0 {
			return Outcome{Success: true, Attempts: attempt, LastErrors: nextErrors}, nil
		}
	}

	return Outcome{Attempts: maxAttempts}, nil
}
