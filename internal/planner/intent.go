package planner

import "strings"

var repairMarkers = []string{
	"修复", "修正", "排查", "优化",
	"fix", "bug", "error", "issue", "refactor", "improve",
}

// IsRepairIntent reports whether message matches any of spec.md §4.1's
// repair-intent markers, case-insensitively.
func IsRepairIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, m := range repairMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
