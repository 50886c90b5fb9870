package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conductor-run/orchestrator/internal/kernel"
	"github.com/conductor-run/orchestrator/internal/llmclient"
	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/procrunner"
	"github.com/conductor-run/orchestrator/internal/repair"
	"github.com/conductor-run/orchestrator/internal/repair/search"
	"github.com/conductor-run/orchestrator/internal/store"
)

// docsAllowlist maps four repairable error categories (missing dependency,
// import, type and build errors; other categories have no entry) to the
// official documentation hosts search guidance is allowed to cite, per §4.10's
// allowlist requirement. There is no live search client in this runtime
// (the examples pack has none to ground one on), so candidates are drawn
// from this fixed, offline catalogue rather than a network lookup.
var docsAllowlist = map[models.ErrorCategory][]search.Candidate{
	models.CategoryMissingDependency: {
		{URL: "https://docs.npmjs.com/cli/v10/commands/npm-install", Hostname: "docs.npmjs.com", Title: "npm install", Snippet: "install a package and its dependencies", Source: search.SourceOfficial},
	},
	models.CategoryImportError: {
		{URL: "https://www.typescriptlang.org/docs/handbook/modules.html", Hostname: "www.typescriptlang.org", Title: "TypeScript Modules", Snippet: "import export module resolution", Source: search.SourceOfficial},
	},
	models.CategoryTypeError: {
		{URL: "https://www.typescriptlang.org/docs/handbook/2/everyday-types.html", Hostname: "www.typescriptlang.org", Title: "Everyday Types", Snippet: "type error type mismatch", Source: search.SourceOfficial},
	},
	models.CategoryBuildError: {
		{URL: "https://nextjs.org/docs/messages", Hostname: "nextjs.org", Title: "Next.js Error Messages", Snippet: "build error compile error", Source: search.SourceOfficial},
	},
}

// staticSearchGuidance implements repair.SearchGuidance over docsAllowlist:
// it scores the fixed catalogue against the repairable errors' categories
// rather than issuing a live search.
type staticSearchGuidance struct{}

func (staticSearchGuidance) Guidance(ctx context.Context, errs []models.ParsedError) (string, error) {
	query := search.BuildQuery(errs)

	seen := make(map[string]bool)
	var candidates []search.Candidate
	for _, e := range errs {
		for _, c := range docsAllowlist[e.Category] {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}

	scored := search.Score(query, candidates)
	return search.RenderSummary(scored, 800), nil
}

// sessionFiles adapts a store.FileStore session into repair.SessionFiles.
// The self-repair loop's interface has no context parameter (it is meant to
// run many times per attempt with negligible latency), so the adapter binds
// one context for the lifetime of a single repair.Loop.Run call.
type sessionFiles struct {
	ctx       context.Context
	files     store.FileStore
	sessionID string
	installed map[string]bool
	cache     map[string]models.StoredFile
}

func newSessionFiles(ctx context.Context, files store.FileStore, sessionID string, installed map[string]bool) (*sessionFiles, error) {
	sf := &sessionFiles{ctx: ctx, files: files, sessionID: sessionID, installed: installed}
	if err := sf.refresh(); err != nil {
		return nil, err
	}
	return sf, nil
}

func (sf *sessionFiles) refresh() error {
	all, err := sf.files.GetAllFiles(sf.ctx, sf.sessionID)
	if err != nil {
		return err
	}
	sf.cache = make(map[string]models.StoredFile, len(all))
	for _, f := range all {
		sf.cache[f.Path] = f
	}
	return nil
}

func (sf *sessionFiles) Files() map[string]models.StoredFile {
	return sf.cache
}

func (sf *sessionFiles) SetFiles(files map[string]models.StoredFile) {
	sf.cache = files
	batch := make([]store.NewFile, 0, len(files))
	for path, f := range files {
		batch = append(batch, store.NewFile{Path: path, Content: f.Content, Language: f.Language})
	}
	// Best effort: SessionFiles has no error return, so a rollback that
	// fails to persist still takes effect for the remainder of this
	// process's in-memory view.
	_, _ = sf.files.SaveFiles(sf.ctx, sf.sessionID, batch)
}

func (sf *sessionFiles) Contents() map[string]string {
	out := make(map[string]string, len(sf.cache))
	for path, f := range sf.cache {
		out[path] = f.Content
	}
	return out
}

func (sf *sessionFiles) InstalledPackages() map[string]bool {
	return sf.installed
}

// llmRepairer issues a follow-up Stream call that appends the loop's
// context blocks to the repair agent's prompt.
type llmRepairer struct {
	client    llmclient.Client
	agentID   string
	sessionID string
}

func (r *llmRepairer) Repair(ctx context.Context, contextBlocks []string) error {
	prompt := fmt.Sprintf("[repair] %s", strings.Join(contextBlocks, "\n\n"))
	_, err := r.client.Stream(ctx, llmclient.StreamRequest{
		AgentID:     r.agentID,
		MessageID:   "repair",
		UserMessage: prompt,
		SessionID:   r.sessionID,
	})
	return err
}

// runRepair drives a self-repair loop over the most recent wave's failures.
// It returns the loop's outcome so the caller can fold it into the run
// summary and digest. The session's current files are materialized to a
// locked validation directory before each attempt, and Phase 1/Phase 2 run
// for real against that directory: TemplateChecker checks project structure,
// then ToolchainValidator spawns npm/npx/node through a procrunner.Runner
// scoped to the validation directory and parses their output.
func runRepair(ctx context.Context, client llmclient.Client, files store.FileStore, sessionID, agentID string, results []kernel.TaskExecutionResult, maxAttempts int, smokeURL string) (repair.Outcome, error) {
	sf, err := newSessionFiles(ctx, files, sessionID, map[string]bool{})
	if err != nil {
		return repair.Outcome{}, err
	}

	vdir := repair.NewValidationDir(filepath.Join(os.TempDir(), "conductor-run-validate", sessionID))
	if err := vdir.Materialize(sf.Files()); err != nil {
		return repair.Outcome{}, fmt.Errorf("runRepair: materialize validation dir: %w", err)
	}
	defer vdir.Cleanup()

	runner := procrunner.NewExecRunner(vdir.Root())

	loop := &repair.Loop{
		Session:  sf,
		PreBuild: &repair.TemplateChecker{WorkspaceRoot: vdir.Root()},
		Validator: &repair.ToolchainValidator{
			Runner:        runner,
			WorkspaceRoot: vdir.Root(),
			SmokeURL:      smokeURL,
		},
		Repairer:    &llmRepairer{client: client, agentID: agentID, sessionID: sessionID},
		Search:      staticSearchGuidance{},
		MaxAttempts: maxAttempts,
	}

	return loop.Run(ctx)
}
