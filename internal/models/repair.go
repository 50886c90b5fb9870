package models

import "time"

// StrategyProfile selects which repair context blocks the self-repair loop
// prepends to the next LLM invocation, escalating as a repair loop gets
// stuck on the same fingerprint.
type StrategyProfile string

const (
	StrategyDefault      StrategyProfile = "default"
	StrategyImportsFirst StrategyProfile = "imports-first"
	StrategyTypesFirst   StrategyProfile = "types-first"
	StrategyBuildFirst   StrategyProfile = "build-first"
)

// RepairSnapshot is a point-in-time capture of a session's file set, taken
// after a repair iteration is attempted so a worsening outcome can be
// rolled back to a known-good state.
type RepairSnapshot struct {
	Files       map[string]StoredFile
	Fingerprint string
	ErrorCount  int
	CapturedAt  time.Time
}

// StoredFile mirrors the file-store entity from spec.md §3 as seen by the
// core (the relational persistence behind it is out of scope).
type StoredFile struct {
	SessionID string
	Path      string
	Content   string
	Language  string
	Size      int
	CreatedAt time.Time
}
