package models

// ErrorCategory classifies a parsed compiler/linter/runtime error for the
// self-repair loop's strategy and rollback decisions.
type ErrorCategory string

const (
	CategoryMissingDependency ErrorCategory = "MISSING_DEPENDENCY"
	CategoryTypeError         ErrorCategory = "TYPE_ERROR"
	CategoryImportError       ErrorCategory = "IMPORT_ERROR"
	CategorySyntaxError       ErrorCategory = "SYNTAX_ERROR"
	CategoryConfigError       ErrorCategory = "CONFIG_ERROR"
	CategoryLintError         ErrorCategory = "LINT_ERROR"
	CategoryBuildError        ErrorCategory = "BUILD_ERROR"
	CategoryRuntimeError      ErrorCategory = "RUNTIME_ERROR"
	CategoryUnknown           ErrorCategory = "UNKNOWN"
)

// Repairable reports whether the self-repair loop should act on errors of
// this category. Only UNKNOWN is treated as non-repairable by default.
func (c ErrorCategory) Repairable() bool {
	return c != CategoryUnknown
}

// ParsedError is a normalized view of one diagnostic emitted by an external
// compiler, linter, or runtime, as produced by the Self-Repair Loop's output
// parsers.
type ParsedError struct {
	Category       ErrorCategory
	Message        string
	Raw            string
	File           string
	Line           int
	Column         int
	Code           string
	MissingPackage string
	MissingTypes   []string
}
