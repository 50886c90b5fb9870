package repair

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/procrunner"
)

// fakeRunner scripts a canned Result/error per executable invocation, keyed
// by the space-joined command, so each toolchain stage can be exercised
// independently.
type fakeRunner struct {
	byCommand map[string]procrunner.Result
	calls     []string
}

func (f *fakeRunner) RunCommand(ctx context.Context, executable string, args []string, opts procrunner.Options) (procrunner.Result, error) {
	key := executable
	for _, a := range args {
		key += " " + a
	}
	f.calls = append(f.calls, key)
	if r, ok := f.byCommand[key]; ok {
		return r, nil
	}
	return procrunner.Result{ExitCode: 0}, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTemplateCheckerFlagsMissingRequiredFiles(t *testing.T) {
	root := t.TempDir()
	c := &TemplateChecker{WorkspaceRoot: root}
	findings, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, models.CategoryConfigError, findings[0].Category)
}

func TestTemplateCheckerFlagsInvalidPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{not json")
	writeFile(t, root, "tsconfig.json", "{}")
	c := &TemplateChecker{WorkspaceRoot: root}
	findings, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "not valid JSON")
}

func TestTemplateCheckerPassesOnValidProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)
	writeFile(t, root, "tsconfig.json", "{}")
	c := &TemplateChecker{WorkspaceRoot: root}
	findings, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestParseTSCLineCategorizesByCode(t *testing.T) {
	e := parseTSCLine(`src/App.tsx(10,5): error TS2307: Cannot find module 'foo'.`)
	require.NotNil(t, e)
	assert.Equal(t, models.CategoryImportError, e.Category)
	assert.Equal(t, "src/App.tsx", e.File)
	assert.Equal(t, 10, e.Line)
	assert.Equal(t, 5, e.Column)
	assert.Equal(t, "TS2307", e.Code)

	e = parseTSCLine(`src/App.tsx(3,1): error TS2322: Type 'string' is not assignable to type 'number'.`)
	require.NotNil(t, e)
	assert.Equal(t, models.CategoryTypeError, e.Category)

	e = parseTSCLine(`src/App.tsx(1,1): error TS1005: ';' expected.`)
	require.NotNil(t, e)
	assert.Equal(t, models.CategorySyntaxError, e.Category)

	assert.Nil(t, parseTSCLine("not a tsc line"))
}

func TestParseTSCOutputScansMultipleLines(t *testing.T) {
	output := "src/a.ts(1,1): error TS2304: Cannot find name 'x'.\n" +
		"src/b.ts(2,2): error TS2322: Type mismatch.\n"
	errs := parseTSCOutput(output)
	require.Len(t, errs, 2)
}

func TestParseFirstSyntaxErrorFallsBackToNodeStyle(t *testing.T) {
	output := "/tmp/a.js:3\nfunction( {\n         ^\n\nSyntaxError: Unexpected token '{'\n    at wrapSafe"
	e := parseFirstSyntaxError("a.js", output)
	require.NotNil(t, e)
	assert.Equal(t, models.CategorySyntaxError, e.Category)
	assert.Contains(t, e.Message, "SyntaxError")
}

func TestLastLinesTruncatesToTail(t *testing.T) {
	out := "a\nb\nc\nd\ne"
	assert.Equal(t, "d\ne", lastLines(out, 2))
	assert.Equal(t, out, lastLines(out, 10))
}

func TestToolchainValidatorPassesWhenEverythingGreen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)
	writeFile(t, root, "src/App.tsx", "export const x = 1\n")

	runner := &fakeRunner{byCommand: map[string]procrunner.Result{}}
	v := &ToolchainValidator{Runner: runner, WorkspaceRoot: root}

	findings, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Contains(t, runner.calls, "npm install")
}

func TestToolchainValidatorStopsAtFailingBuildBeforeSmoke(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)
	writeFile(t, root, "src/App.tsx", "export const x = 1\n")

	runner := &fakeRunner{byCommand: map[string]procrunner.Result{
		"npm run build": {ExitCode: 1, Stderr: "Error: something broke\n"},
	}}
	v := &ToolchainValidator{Runner: runner, WorkspaceRoot: root, SmokeURL: "http://localhost:3000"}

	findings, err := v.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.CategoryBuildError, findings[0].Category)
	for _, c := range runner.calls {
		assert.NotContains(t, c, "conductor-run-smoke")
	}
}

func TestToolchainValidatorSkipsInstallWhenHashUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)

	runner := &fakeRunner{byCommand: map[string]procrunner.Result{}}
	v := &ToolchainValidator{Runner: runner, WorkspaceRoot: root}

	_, err := v.Validate(context.Background())
	require.NoError(t, err)
	firstInstallCalls := 0
	for _, c := range runner.calls {
		if c == "npm install" {
			firstInstallCalls++
		}
	}
	assert.Equal(t, 1, firstInstallCalls)

	_, err = v.Validate(context.Background())
	require.NoError(t, err)
	secondInstallCalls := 0
	for _, c := range runner.calls {
		if c == "npm install" {
			secondInstallCalls++
		}
	}
	assert.Equal(t, 1, secondInstallCalls, "install should be skipped the second time since package.json is unchanged")
}

func TestToolchainValidatorReportsLintFindings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name":"app"}`)
	writeFile(t, root, "src/App.tsx", "export const x = 1\n")

	lintJSON := `[{"filePath":"` + filepath.Join(root, "src/App.tsx") + `","messages":[{"ruleId":"no-unused-vars","severity":2,"message":"x is unused","line":1,"column":7}]}]`
	runner := &fakeRunner{byCommand: map[string]procrunner.Result{
		"npx eslint . --format json": {ExitCode: 1, Stdout: lintJSON},
	}}
	v := &ToolchainValidator{Runner: runner, WorkspaceRoot: root}

	findings, err := v.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.CategoryLintError, findings[0].Category)
	assert.Equal(t, "no-unused-vars", findings[0].Code)
}
