// Package reflect implements the Reflection scorer and Iteration Controller
// (spec §4.5): it turns one iteration's task results and generated files
// into a composite score, decides accept/iterate/abort, and on iterate
// composes the replan diagnostic bundle used to rewrite the user message.
package reflect

import "regexp"

// signalPatterns maps each of the eight interaction signals to the regexes
// checked against touched file paths and sampled artifact text. A signal is
// true if either set of patterns matches anywhere in the corresponding
// input.
type signalPatterns struct {
	pathPatterns []*regexp.Regexp
	textPatterns []*regexp.Regexp
}

var signalDefs = map[string]signalPatterns{
	"layoutShell": {
		pathPatterns: compileAll(`(?i)layout`, `(?i)app\.tsx?$`, `(?i)_app\.`),
		textPatterns: compileAll(`(?i)<(nav|header|sidebar|footer)`),
	},
	"routeStructure": {
		pathPatterns: compileAll(`(?i)/(pages|routes|app)/`, `(?i)router`),
		textPatterns: compileAll(`(?i)react-router|createBrowserRouter|useRoutes|<Route\b`),
	},
	"dataSurface": {
		pathPatterns: compileAll(`(?i)(table|list|grid|card)s?\.tsx?$`),
		textPatterns: compileAll(`(?i)<table\b|\.map\(\s*\(`),
	},
	"formFlow": {
		pathPatterns: compileAll(`(?i)form`),
		textPatterns: compileAll(`(?i)<form\b|onSubmit|useForm\(`),
	},
	"validation": {
		pathPatterns: compileAll(`(?i)valid`),
		textPatterns: compileAll(`(?i)required|zod\.|yup\.|validate\(`),
	},
	"stateManagement": {
		pathPatterns: compileAll(`(?i)store|slice|context`),
		textPatterns: compileAll(`(?i)useState\(|useReducer\(|createSlice\(|createStore\(`),
	},
	"asyncInteraction": {
		pathPatterns: compileAll(`(?i)api|service|hook`),
		textPatterns: compileAll(`(?i)async\s+function|await\s+fetch|useEffect\(`),
	},
	"multipleViews": {
		pathPatterns: compileAll(`(?i)/(views|pages|screens)/.+/.+`),
		textPatterns: nil,
	},
}

// signalOrder fixes iteration order for deterministic output.
var signalOrder = []string{
	"layoutShell", "routeStructure", "dataSurface", "formFlow",
	"validation", "stateManagement", "asyncInteraction", "multipleViews",
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Signals holds the eight boolean interaction signals derived from an
// iteration's touched paths and sampled artifact text.
type Signals map[string]bool

// DeriveSignals evaluates every signal against the touched file paths and a
// concatenation of sampled artifact text.
func DeriveSignals(touchedPaths []string, sampleText string) Signals {
	out := make(Signals, len(signalDefs))
	for _, name := range signalOrder {
		def := signalDefs[name]
		matched := false
		for _, p := range def.pathPatterns {
			for _, path := range touchedPaths {
				if p.MatchString(path) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			for _, p := range def.textPatterns {
				if p.MatchString(sampleText) {
					matched = true
					break
				}
			}
		}
		out[name] = matched
	}
	return out
}

// Coverage computes signalCoverage = round((#true / 8) * 100), clamped to
// [0, 100].
func (s Signals) Coverage() int {
	count := 0
	for _, v := range s {
		if v {
			count++
		}
	}
	pct := roundf(float64(count) / float64(len(signalOrder)) * 100)
	return clampInt(pct, 0, 100)
}

func roundf(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var placeholderPattern = regexp.MustCompile(`(?i)占位|placeholder|TODO|待补充|coming soon|to be implemented|可扩展`)

// HasPlaceholderContent reports whether sampled artifact text contains a
// placeholder marker.
func HasPlaceholderContent(sampleText string) bool {
	return placeholderPattern.MatchString(sampleText)
}
