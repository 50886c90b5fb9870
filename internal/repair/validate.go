package repair

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/procrunner"
)

// sourceExtensions are the files Phase 2's L0 syntax check walks, alongside
// Phase 0's dependency scan.
var sourceExtensions = map[string]bool{".ts": true, ".tsx": true, ".js": true, ".jsx": true}

// TemplateChecker implements PreBuildChecker (§4.7 Phase 1): quick,
// process-free structural checks that catch a malformed project before
// paying for an install/build/browser cycle.
type TemplateChecker struct {
	WorkspaceRoot string
	// RequiredFiles defaults to package.json and tsconfig.json when nil.
	RequiredFiles []string
}

// Check verifies every required file is present and that package.json
// parses as JSON, per §4.7 Phase 1's "project structure sane" gate.
func (c *TemplateChecker) Check(ctx context.Context) ([]models.ParsedError, error) {
	required := c.RequiredFiles
	if required == nil {
		required = []string{"package.json", "tsconfig.json"}
	}

	var findings []models.ParsedError
	for _, rel := range required {
		path := filepath.Join(c.WorkspaceRoot, rel)
		if _, err := os.Stat(path); err != nil {
			findings = append(findings, models.ParsedError{
				Category: models.CategoryConfigError,
				Message:  fmt.Sprintf("required file %s is missing", rel),
				File:     rel,
			})
		}
	}

	pkgPath := filepath.Join(c.WorkspaceRoot, "package.json")
	if data, err := os.ReadFile(pkgPath); err == nil {
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			findings = append(findings, models.ParsedError{
				Category: models.CategoryConfigError,
				Message:  fmt.Sprintf("package.json is not valid JSON: %s", err),
				File:     "package.json",
			})
		}
	}

	return findings, nil
}

// ToolchainValidator implements Validator (§4.7 Phase 2): it actually spawns
// the project's own Node/TypeScript toolchain through a procrunner.Runner
// and parses its output, running each stage gated on the previous one
// passing — L0 syntax, L1a lint, L1b type-check, build, L2 runtime smoke.
type ToolchainValidator struct {
	Runner        procrunner.Runner
	WorkspaceRoot string
	// SmokeURL, when set, is the address the L2 Playwright smoke test
	// navigates to after a successful build. Empty skips L2 entirely.
	SmokeURL string

	lastInstallHash string
}

// Validate runs Phase 2 end to end, short-circuiting at the first stage that
// produces diagnostics (per §4.7's "gated on L0/L1 passing" rule) except for
// lint and type-check, which both run and pool their findings before the
// gate on build.
func (v *ToolchainValidator) Validate(ctx context.Context) ([]models.ParsedError, error) {
	if err := v.installDependencies(ctx); err != nil {
		return []models.ParsedError{{Category: models.CategoryMissingDependency, Message: err.Error()}}, nil
	}

	files, err := v.listSourceFiles()
	if err != nil {
		return nil, fmt.Errorf("toolchainvalidator: list source files: %w", err)
	}

	if syntaxErrs, ok := v.syntaxCheck(ctx, files); !ok {
		return syntaxErrs, nil
	}

	var staticErrs []models.ParsedError
	staticErrs = append(staticErrs, v.lint(ctx)...)
	staticErrs = append(staticErrs, v.typeCheck(ctx)...)
	if len(staticErrs) > 0 {
		return staticErrs, nil
	}

	if buildErrs := v.build(ctx); len(buildErrs) > 0 {
		return buildErrs, nil
	}

	if v.SmokeURL == "" {
		return nil, nil
	}
	return v.runtimeSmoke(ctx), nil
}

// installDependencies runs npm install, skipping it when package.json's
// content hash is unchanged since the last successful install (§4.7's
// install-skip-hash optimization).
func (v *ToolchainValidator) installDependencies(ctx context.Context) error {
	data, err := os.ReadFile(filepath.Join(v.WorkspaceRoot, "package.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read package.json: %w", err)
	}

	sum := sha1.Sum(data)
	hash := hex.EncodeToString(sum[:])
	if hash == v.lastInstallHash {
		return nil
	}

	result, err := v.Runner.RunCommand(ctx, "npm", []string{"install"}, procrunner.Options{Cwd: ".", Timeout: 3 * time.Minute})
	if err != nil {
		return fmt.Errorf("npm install: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("npm install failed: %s", lastLines(result.Stderr, 20))
	}

	v.lastInstallHash = hash
	return nil
}

// listSourceFiles walks WorkspaceRoot for the extensions sourceExtensions
// names, skipping node_modules and dotdirs.
func (v *ToolchainValidator) listSourceFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(v.WorkspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || name == ".git" || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[filepath.Ext(path)] {
			rel, relErr := filepath.Rel(v.WorkspaceRoot, path)
			if relErr != nil {
				rel = path
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// syntaxCheck implements L0: a fast per-file parse, node --check for
// .js/.jsx and tsc --noEmit for a single .ts/.tsx file, so one malformed
// file can't block the whole project's later diagnostics from surfacing.
func (v *ToolchainValidator) syntaxCheck(ctx context.Context, files []string) ([]models.ParsedError, bool) {
	var findings []models.ParsedError
	for _, rel := range files {
		ext := filepath.Ext(rel)
		var result procrunner.Result
		var err error
		switch ext {
		case ".js", ".jsx":
			result, err = v.Runner.RunCommand(ctx, "node", []string{"--check", rel}, procrunner.Options{Cwd: ".", Timeout: 15 * time.Second})
		case ".ts", ".tsx":
			result, err = v.Runner.RunCommand(ctx, "npx", []string{"tsc", "--noEmit", "--allowJs", "--checkJs", "false", rel}, procrunner.Options{Cwd: ".", Timeout: 20 * time.Second})
		default:
			continue
		}
		if err != nil {
			findings = append(findings, models.ParsedError{Category: models.CategorySyntaxError, Message: err.Error(), File: rel})
			continue
		}
		if result.ExitCode != 0 {
			output := result.Stdout + result.Stderr
			if parsed := parseFirstSyntaxError(rel, output); parsed != nil {
				findings = append(findings, *parsed)
			} else {
				findings = append(findings, models.ParsedError{
					Category: models.CategorySyntaxError,
					Message:  firstLine(output),
					Raw:      output,
					File:     rel,
				})
			}
		}
	}
	return findings, len(findings) == 0
}

// eslintMessage mirrors the subset of eslint's --format json schema the
// lint stage parses.
type eslintMessage struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

type eslintFileResult struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

// lint implements L1a: eslint across the whole project, parsing its JSON
// formatter output. Severity 1 (warning) is not repairable and is skipped;
// only severity 2 (error) entries are reported.
func (v *ToolchainValidator) lint(ctx context.Context) []models.ParsedError {
	result, err := v.Runner.RunCommand(ctx, "npx", []string{"eslint", ".", "--format", "json"}, procrunner.Options{Cwd: ".", Timeout: 60 * time.Second})
	if err != nil {
		return nil
	}
	if strings.TrimSpace(result.Stdout) == "" {
		return nil
	}

	var fileResults []eslintFileResult
	if err := json.Unmarshal([]byte(result.Stdout), &fileResults); err != nil {
		return nil
	}

	var findings []models.ParsedError
	for _, fr := range fileResults {
		rel, relErr := filepath.Rel(v.WorkspaceRoot, fr.FilePath)
		if relErr != nil {
			rel = fr.FilePath
		}
		for _, m := range fr.Messages {
			if m.Severity < 2 {
				continue
			}
			findings = append(findings, models.ParsedError{
				Category: models.CategoryLintError,
				Message:  m.Message,
				File:     rel,
				Line:     m.Line,
				Column:   m.Column,
				Code:     m.RuleID,
			})
		}
	}
	return findings
}

// typeCheck implements L1b: a project-wide tsc --noEmit, parsed line by line.
func (v *ToolchainValidator) typeCheck(ctx context.Context) []models.ParsedError {
	result, err := v.Runner.RunCommand(ctx, "npx", []string{"tsc", "--noEmit", "--pretty", "false"}, procrunner.Options{Cwd: ".", Timeout: 120 * time.Second})
	if err != nil {
		return nil
	}
	if result.ExitCode == 0 {
		return nil
	}
	return parseTSCOutput(result.Stdout + result.Stderr)
}

// build implements the build gate: npm run build. A nonzero exit yields one
// CategoryBuildError carrying the tail of the output for the repair prompt
// and the full output in Raw for diagnostics.
func (v *ToolchainValidator) build(ctx context.Context) []models.ParsedError {
	result, err := v.Runner.RunCommand(ctx, "npm", []string{"run", "build"}, procrunner.Options{Cwd: ".", Timeout: 5 * time.Minute})
	if err != nil {
		return []models.ParsedError{{Category: models.CategoryBuildError, Message: err.Error()}}
	}
	if result.ExitCode == 0 {
		return nil
	}
	output := result.Stdout + result.Stderr
	return []models.ParsedError{{
		Category: models.CategoryBuildError,
		Message:  lastLines(output, 20),
		Raw:      output,
	}}
}

// smokeResult is the JSON shape the embedded smoke script writes to stdout.
type smokeResult struct {
	Steps struct {
		Goto        bool `json:"goto"`
		WaitForBody bool `json:"waitForBody"`
		ReadyState  bool `json:"readyState"`
		Screenshot  bool `json:"screenshot"`
	} `json:"steps"`
	Errors []string `json:"errors"`
}

// runtimeSmoke implements L2: a headless-browser smoke test via Playwright,
// run as a Node child process so the Go side carries no browser-automation
// dependency. Each step inside the script enforces its own 5s hard timeout
// (PlaywrightHardTimeoutError), independent of the process-level timeout
// passed to RunCommand here.
func (v *ToolchainValidator) runtimeSmoke(ctx context.Context) []models.ParsedError {
	scriptRel := ".conductor-run-smoke.js"
	scriptPath := filepath.Join(v.WorkspaceRoot, scriptRel)
	if err := os.WriteFile(scriptPath, []byte(smokeScriptTemplate), 0o644); err != nil {
		return []models.ParsedError{{Category: models.CategoryRuntimeError, Message: fmt.Sprintf("write smoke script: %s", err)}}
	}
	defer os.Remove(scriptPath)

	result, err := v.Runner.RunCommand(ctx, "node", []string{scriptRel, v.SmokeURL}, procrunner.Options{Cwd: ".", Timeout: 25 * time.Second})
	if err != nil {
		return []models.ParsedError{{Category: models.CategoryRuntimeError, Message: err.Error()}}
	}

	var parsed smokeResult
	if jsonErr := json.Unmarshal([]byte(result.Stdout), &parsed); jsonErr != nil {
		return []models.ParsedError{{
			Category: models.CategoryRuntimeError,
			Message:  fmt.Sprintf("smoke test produced unparseable output: %s", firstLine(result.Stdout+result.Stderr)),
			Raw:      result.Stdout + result.Stderr,
		}}
	}

	var findings []models.ParsedError
	for _, e := range parsed.Errors {
		findings = append(findings, models.ParsedError{Category: models.CategoryRuntimeError, Message: e})
	}
	return findings
}

var tscLineRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error (TS\d+): (.+)$`)

// parseTSCOutput scans tsc --noEmit's line-oriented output for diagnostic
// lines matching tscLineRe.
func parseTSCOutput(output string) []models.ParsedError {
	var findings []models.ParsedError
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if parsed := parseTSCLine(scanner.Text()); parsed != nil {
			findings = append(findings, *parsed)
		}
	}
	return findings
}

func parseTSCLine(line string) *models.ParsedError {
	m := tscLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil
	}
	lineNo, _ := strconv.Atoi(m[2])
	col, _ := strconv.Atoi(m[3])
	code := m[4]
	message := m[5]
	return &models.ParsedError{
		Category: categorizeTSCode(code, message),
		Message:  message,
		Raw:      line,
		File:     m[1],
		Line:     lineNo,
		Column:   col,
		Code:     code,
	}
}

// categorizeTSCode maps a TypeScript diagnostic code to a repair category.
// TS2307 ("Cannot find module") is an import problem; TS1xxx codes are
// parser/syntax diagnostics; everything else defaults to a type error, the
// most common tsc --noEmit failure mode.
func categorizeTSCode(code, message string) models.ErrorCategory {
	switch {
	case code == "TS2307" || strings.Contains(message, "Cannot find module"):
		return models.CategoryImportError
	case strings.HasPrefix(code, "TS1"):
		return models.CategorySyntaxError
	default:
		return models.CategoryTypeError
	}
}

// parseFirstSyntaxError scans a single file's failing check output (tsc or
// node --check) for the first recognizable diagnostic line, falling back to
// node's own "SyntaxError:" convention when the tsc line format doesn't
// match.
func parseFirstSyntaxError(file, output string) *models.ParsedError {
	scanner := bufio.NewScanner(strings.NewReader(output))
	var prevLine string
	for scanner.Scan() {
		line := scanner.Text()
		if parsed := parseTSCLine(line); parsed != nil {
			return parsed
		}
		if strings.Contains(line, "SyntaxError:") {
			return &models.ParsedError{
				Category: models.CategorySyntaxError,
				Message:  strings.TrimSpace(line),
				Raw:      prevLine + "\n" + line,
				File:     file,
			}
		}
		prevLine = line
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// smokeScriptTemplate is a standalone Node script executed via procrunner,
// not compiled or imported by Go: it uses the project's own Playwright
// devDependency to drive a headless browser through the L2 smoke steps,
// each wrapped in its own 5s hard timeout per §4.7.
const smokeScriptTemplate = `
const { chromium } = require('playwright');

const URL = process.argv[2];
const STEP_TIMEOUT_MS = 5000;

function withHardTimeout(promise, stepName) {
  return Promise.race([
    promise,
    new Promise((_, reject) =>
      setTimeout(() => reject(new Error('PlaywrightHardTimeoutError: ' + stepName + ' exceeded ' + STEP_TIMEOUT_MS + 'ms')), STEP_TIMEOUT_MS)
    ),
  ]);
}

(async () => {
  const steps = { goto: false, waitForBody: false, readyState: false, screenshot: false };
  const errors = [];
  let browser;
  try {
    browser = await chromium.launch();
    const page = await browser.newPage();
    try {
      await withHardTimeout(page.goto(URL), 'goto');
      steps.goto = true;
    } catch (e) { errors.push(e.message); }
    try {
      await withHardTimeout(page.waitForSelector('body'), 'waitForBody');
      steps.waitForBody = true;
    } catch (e) { errors.push(e.message); }
    try {
      await withHardTimeout(page.evaluate(() => document.readyState), 'readyState');
      steps.readyState = true;
    } catch (e) { errors.push(e.message); }
    try {
      await withHardTimeout(page.screenshot(), 'screenshot');
      steps.screenshot = true;
    } catch (e) { errors.push(e.message); }
  } catch (e) {
    errors.push(e.message);
  } finally {
    if (browser) await browser.close();
  }
  process.stdout.write(JSON.stringify({ steps, errors }));
})();
`
