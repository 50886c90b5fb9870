package repair

import (
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
)

// Capture takes a RepairSnapshot of the current session files, tagged with
// the repairable-error fingerprint and count computed for this attempt.
func Capture(files map[string]models.StoredFile, fingerprint string, errorCount int, now time.Time) models.RepairSnapshot {
	copied := make(map[string]models.StoredFile, len(files))
	for k, v := range files {
		copied[k] = v
	}
	return models.RepairSnapshot{
		Files:       copied,
		Fingerprint: fingerprint,
		ErrorCount:  errorCount,
		CapturedAt:  now,
	}
}

// ShouldRollback implements §4.7 step 8's unconditional rollback trigger:
// roll back iff the next iteration's error count worsened relative to the
// snapshot taken before it ran.
func ShouldRollback(snapshot models.RepairSnapshot, newErrorCount int) bool {
	return newErrorCount > snapshot.ErrorCount
}

// Rollback returns the snapshot's captured files, ready to overwrite the
// session's current file set. The caller (the session file store) performs
// the actual write; this function only selects what to write.
func Rollback(snapshot models.RepairSnapshot) map[string]models.StoredFile {
	restored := make(map[string]models.StoredFile, len(snapshot.Files))
	for k, v := range snapshot.Files {
		restored[k] = v
	}
	return restored
}
