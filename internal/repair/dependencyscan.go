package repair

import (
	"regexp"
	"sort"
	"strings"
)

// importPatterns covers the four import styles named in §4.7 Phase 0:
// `import … from '…'`, `import '…'`, `require('…')`, `import('…')`.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)import\s+[^'"]*from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)require\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)import\(\s*['"]([^'"]+)['"]\s*\)`),
}

// builtinModules is the Node.js built-in module allow-list subtracted from
// missing-dependency candidates.
var builtinModules = map[string]bool{
	"fs": true, "path": true, "os": true, "http": true, "https": true,
	"crypto": true, "util": true, "events": true, "stream": true,
	"child_process": true, "url": true, "querystring": true, "buffer": true,
	"assert": true, "zlib": true, "net": true, "dns": true, "tls": true,
}

// devDependencyHints is the known dev-dependency name set from §4.7 Phase 0.
var devDependencyHints = map[string]bool{
	"tailwindcss": true, "postcss": true, "typescript": true, "eslint": true,
	"prettier": true, "vitest": true, "vite": true, "webpack": true, "rollup": true,
}

// ScanImports extracts every import specifier referenced across a set of
// session files keyed by path, restricted by the caller to .ts/.tsx/.js/.jsx
// sources.
func ScanImports(fileContents map[string]string) []string {
	var specs []string
	for _, content := range fileContents {
		for _, pattern := range importPatterns {
			for _, m := range pattern.FindAllStringSubmatch(content, -1) {
				specs = append(specs, m[1])
			}
		}
	}
	return specs
}

// normalizePackageName reduces an import specifier to its installable
// package name: scoped packages keep `@scope/pkg`, unscoped packages take
// only the first path segment.
func normalizePackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	parts := strings.SplitN(spec, "/", 2)
	return parts[0]
}

func isRelativeImport(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

// MissingDependency is one package referenced by session code but not
// resolvable as a built-in, relative import, or already-installed name.
type MissingDependency struct {
	Package string
	Dev     bool
}

// FindMissingDependencies computes the Phase 0 missing-dependency list:
// imports normalized to package names, minus built-ins, relative imports,
// and names already present in package.json's combined dependency set.
func FindMissingDependencies(fileContents map[string]string, installed map[string]bool) []MissingDependency {
	seen := make(map[string]bool)
	var missing []MissingDependency

	for _, spec := range ScanImports(fileContents) {
		if isRelativeImport(spec) {
			continue
		}
		pkg := normalizePackageName(spec)
		if builtinModules[pkg] {
			continue
		}
		if installed[pkg] {
			continue
		}
		if seen[pkg] {
			continue
		}
		seen[pkg] = true

		dev := strings.HasPrefix(pkg, "@types/") || devDependencyHints[pkg]
		missing = append(missing, MissingDependency{Package: pkg, Dev: dev})
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i].Package < missing[j].Package })
	return missing
}
