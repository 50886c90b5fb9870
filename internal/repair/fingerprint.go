// Package repair implements the Self-Repair Loop (spec §4.7): dependency
// scanning, the L0/L1/L2 validation stack orchestration, error
// fingerprinting and stuck-loop detection, strategy-profile escalation, and
// snapshot/rollback.
package repair

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/conductor-run/orchestrator/internal/models"
)

var numericLiteral = regexp.MustCompile(`\d+`)

// normalizeMessage strips numeric literals from an error message so that
// two errors differing only in line/column numbers fingerprint identically.
func normalizeMessage(msg string) string {
	return numericLiteral.ReplaceAllString(msg, "#")
}

// RepairableErrors filters a parsed error list down to repairable
// categories, per §4.7 step 5.
func RepairableErrors(errs []models.ParsedError) []models.ParsedError {
	out := make([]models.ParsedError, 0, len(errs))
	for _, e := range errs {
		if e.Category.Repairable() {
			out = append(out, e)
		}
	}
	return out
}

// Fingerprint normalizes, sorts, and hashes a repairable error list so
// repeated repair attempts can be compared for stuck-loop detection.
func Fingerprint(errs []models.ParsedError) string {
	normalized := make([]string, 0, len(errs))
	for _, e := range errs {
		normalized = append(normalized, normalizeMessage(e.Message))
	}
	sort.Strings(normalized)

	h := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(h[:])
}

// FingerprintTracker counts consecutive repeats of the same fingerprint
// across repair attempts, driving strategy escalation.
type FingerprintTracker struct {
	lastFingerprint string
	repeatCount     int
}

// Observe records a new fingerprint and returns the updated repeat count:
// 1 the first time a fingerprint is seen, incrementing on every
// consecutive repeat, reset to 1 when the fingerprint changes.
func (t *FingerprintTracker) Observe(fingerprint string) int {
	if fingerprint == t.lastFingerprint && fingerprint != "" {
		t.repeatCount++
	} else {
		t.lastFingerprint = fingerprint
		t.repeatCount = 1
	}
	return t.repeatCount
}

// StrategyForRepeatCount maps a stuck-loop repeat count to the escalated
// strategy profile per §4.7 step 6: 2→imports-first, 3→types-first,
// 4(+)→build-first.
func StrategyForRepeatCount(repeatCount int) models.StrategyProfile {
	switch {
	case repeatCount >= 4:
		return models.StrategyBuildFirst
	case repeatCount == 3:
		return models.StrategyTypesFirst
	case repeatCount == 2:
		return models.StrategyImportsFirst
	default:
		return models.StrategyDefault
	}
}

// SameFingerprintFailures reports whether the search-augmented repair
// guidance block (§4.10) should be prepended: the spec's threshold is
// sameFingerprintFailures >= 3.
func SameFingerprintFailures(repeatCount int) bool {
	return repeatCount >= 3
}
