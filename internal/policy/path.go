package policy

import (
	"strings"

	"github.com/conductor-run/orchestrator/internal/models"
)

// windowsUNCPrefix matches a Windows UNC path root ("\\server\share").
const windowsUNCPrefix = `\\`

// EvaluatePath validates a single write target against the runtime-artifact
// path policy (spec §4.6): reject traversal and absolute paths, then unwrap
// one level of synthetic root segment.
func EvaluatePath(path string) models.PathDecision {
	if path == "" || path == "." || path == ".." ||
		strings.HasPrefix(path, "../") ||
		strings.Contains(path, "/../") ||
		strings.HasPrefix(path, "/") ||
		isWindowsAbsolute(path) ||
		strings.HasPrefix(path, windowsUNCPrefix) {
		return models.PathDecision{Allowed: false, Reason: "RUNTIME_ARTIFACT_PATH_BLOCKED"}
	}

	return models.PathDecision{Allowed: true, NormalizedPath: unwrapSyntheticRoot(path)}
}

// isWindowsAbsolute matches "X:..." drive-letter absolute paths.
func isWindowsAbsolute(path string) bool {
	if len(path) < 2 {
		return false
	}
	c := path[0]
	return path[1] == ':' && ((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'))
}

// unwrapSyntheticRoot strips one leading path segment when it looks like a
// generated project's synthetic root directory: contains a '-' or '_' and
// has no '.' of its own (so e.g. "src" and "my.app" are untouched while
// "generated-web-app", "web-prototype" and also "node_modules" are unwrapped).
func unwrapSyntheticRoot(path string) string {
	segments := strings.SplitN(path, "/", 2)
	if len(segments) != 2 {
		return path
	}
	top := segments[0]
	looksSynthetic := (strings.Contains(top, "-") || strings.Contains(top, "_")) && !strings.Contains(top, ".")
	if !looksSynthetic {
		return path
	}
	return segments[1]
}

// NormalizeGenerated evaluates and unwraps a batch of candidate write
// targets produced by one agent turn. Entries that fail the path policy are
// dropped from the result.
func NormalizeGenerated(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		d := EvaluatePath(p)
		if d.Allowed {
			out = append(out, d.NormalizedPath)
		}
	}
	return out
}
