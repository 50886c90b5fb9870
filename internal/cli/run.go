package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conductor-run/orchestrator/internal/events"
	"github.com/conductor-run/orchestrator/internal/kernel"
	"github.com/conductor-run/orchestrator/internal/llmclient"
	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/orchestrator"
	"github.com/conductor-run/orchestrator/internal/patch"
	"github.com/conductor-run/orchestrator/internal/planner"
	"github.com/conductor-run/orchestrator/internal/policy"
	"github.com/conductor-run/orchestrator/internal/procrunner"
	"github.com/conductor-run/orchestrator/internal/reflect"
	"github.com/conductor-run/orchestrator/internal/repair"
	"github.com/conductor-run/orchestrator/internal/runconfig"
	"github.com/conductor-run/orchestrator/internal/runlog"
	"github.com/conductor-run/orchestrator/internal/scheduler"
	"github.com/conductor-run/orchestrator/internal/store"
)

const defaultTargetScore = 80

// agentRunner adapts an llmclient.Client into a kernel.TaskRunner: it turns
// an ExecutionTask into a StreamRequest, records the reply as the task's
// artifact, and derives a green/failed status from whether the call errored.
type agentRunner struct {
	client    llmclient.Client
	files     store.FileStore
	sessionID string
}

func (r *agentRunner) RunTask(ctx context.Context, task models.ExecutionTask) (kernel.TaskExecutionResult, error) {
	res, err := r.client.Stream(ctx, llmclient.StreamRequest{
		AgentID:     task.AgentRole,
		MessageID:   task.ID,
		UserMessage: fmt.Sprintf("[%s] %s", task.Phase, task.AgentRole),
		SessionID:   r.sessionID,
	})
	if err != nil {
		return kernel.TaskExecutionResult{TaskID: task.ID, Status: kernel.StatusFailed, Err: err}, err
	}

	path := fmt.Sprintf("%s/%s.out", task.Phase, task.ID)
	content := res.Text
	if strings.Contains(res.Text, "<<<<<<< SEARCH") {
		existing, err := r.files.GetFile(ctx, r.sessionID, path)
		if err != nil {
			return kernel.TaskExecutionResult{TaskID: task.ID, Status: kernel.StatusFailed, Err: err}, err
		}
		base := ""
		if existing != nil {
			base = existing.Content
		}
		patched, err := patch.Apply(path, base, res.Text, true)
		if err != nil {
			return kernel.TaskExecutionResult{TaskID: task.ID, Status: kernel.StatusFailed, Err: err}, err
		}
		content = patched
	}

	if _, err := r.files.SaveFiles(ctx, r.sessionID, []store.NewFile{{Path: path, Content: content, Language: "text"}}); err != nil {
		return kernel.TaskExecutionResult{TaskID: task.ID, Status: kernel.StatusFailed, Err: err}, err
	}

	return kernel.TaskExecutionResult{
		TaskID:        task.ID,
		Status:        kernel.StatusGreen,
		Output:        content,
		FilesChanged:  []string{path},
		ToolCallCount: len(res.ToolCalls),
	}, nil
}

func newRunCommand() *cobra.Command {
	var mode, platform, projectType, configPath, agentBinary string

	cmd := &cobra.Command{
		Use:   "run <user-message>",
		Short: "Plan, schedule, execute, and reflect on a run until it is accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runconfig.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sessionID := uuid.NewString()
			runID := planner.NewRunID()

			console := runlog.NewConsoleLogger(os.Stdout, cfg.LogLevel)
			fileLog, err := runlog.NewFileLogger(cfg.LogDir, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer fileLog.Close()

			emitter := events.New(sessionID, runID, nil, console, fileLog)

			var files store.FileStore
			switch cfg.Store.Backend {
			case "sqlite":
				sqliteStore, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
				if err != nil {
					return err
				}
				defer sqliteStore.Close()
				files = sqliteStore
			default:
				files = store.NewMemoryStore()
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			var client llmclient.Client
			if agentBinary != "" {
				cliClient := llmclient.NewCLIClient(procrunner.NewExecRunner(cwd))
				cliClient.BinaryPath = agentBinary
				client = cliClient
			} else {
				client = llmclient.NewFakeClient(nil)
			}

			runner := &agentRunner{client: client, files: files, sessionID: sessionID}
			k := kernel.New(runner, emitter, kernel.Policies{
				Contract:   policy.NewContractPolicy(),
				ReadBudget: policy.NewReadBudget(),
			})

			budget := &orchestrator.RuntimeBudget{
				MaxSteps: int64Ptr(cfg.Budget.MaxSteps),
				MaxCalls: int64Ptr(cfg.Budget.MaxCalls),
			}

			return runLoop(cmd.Context(), runLoopInput{
				emitter:       emitter,
				console:       console,
				fileLog:       fileLog,
				kernel:        k,
				budget:        budget,
				userMessage:   args[0],
				mode:          mode,
				platform:      platform,
				projectType:   projectType,
				dryRun:        cfg.DryRun,
				client:        client,
				files:         files,
				sessionID:     sessionID,
				repairEnabled:  cfg.Repair.Enabled,
				repairMax:      cfg.Repair.MaxAttempts,
				repairSmokeURL: cfg.Repair.SmokeURL,
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "implementer", "creator or implementer")
	cmd.Flags().StringVar(&platform, "platform", "web", "web, desktop, mobile, or miniprogram")
	cmd.Flags().StringVar(&projectType, "project-type", "next-js", "project type for the dependency checklist")
	cmd.Flags().StringVar(&configPath, "config", ".conductor-run/config.yaml", "path to config file")
	cmd.Flags().StringVar(&agentBinary, "agent-binary", "", "path to an external agent CLI binary (empty uses a deterministic fake agent)")

	return cmd
}

func int64Ptr(v int64) *int64 { return &v }

type runLoopInput struct {
	emitter     *events.Emitter
	console     *runlog.ConsoleLogger
	fileLog     *runlog.FileLogger
	kernel      *kernel.Kernel
	budget      *orchestrator.RuntimeBudget
	userMessage string
	mode        string
	platform    string
	projectType string
	dryRun      bool

	client         llmclient.Client
	files          store.FileStore
	sessionID      string
	repairEnabled  bool
	repairMax      int
	repairSmokeURL string
}

// runLoop implements §4.5's plan -> schedule -> execute -> reflect cycle:
// it regenerates the plan from a replan-annotated message each iteration
// until Reflection accepts the run, aborts it, or the plan's own
// MaxIterations/MaxReplanDepth bounds are reached.
func runLoop(ctx context.Context, in runLoopInput) error {
	originalMessage := in.userMessage
	currentMessage := in.userMessage
	replanDepth := 0
	filesTotal := 0
	var lastRepairOutcome *repair.Outcome

	for iteration := 1; ; iteration++ {
		start := time.Now()

		plan, err := planner.Generate(planner.Input{
			UserMessage: currentMessage,
			Mode:        in.mode,
			Platform:    in.platform,
			ProjectType: in.projectType,
		})
		if err != nil {
			in.emitter.Emit(models.EventRunError, map[string]any{"message": err.Error()})
			return err
		}

		schedule, err := scheduler.Schedule(plan.Tasks)
		if err != nil {
			in.emitter.Emit(models.EventRunError, map[string]any{"message": err.Error()})
			return err
		}
		if schedule.HasCycle {
			err := fmt.Errorf("plan %s: dependency cycle detected", plan.ID)
			in.emitter.Emit(models.EventRunError, map[string]any{"message": err.Error()})
			return err
		}

		if in.dryRun {
			in.console.LogInfo(fmt.Sprintf("dry run: plan %s would execute %d tasks across %d waves", plan.ID, len(plan.Tasks), len(schedule.Waves)))
			return nil
		}

		var results []kernel.TaskExecutionResult
		for _, wave := range schedule.Waves {
			in.console.LogWaveStart(wave)
			waveStart := time.Now()
			waveResults, execErr := in.kernel.ExecuteSchedule(ctx, models.ExecutionSchedule{Waves: []models.Wave{wave}}, plan.Tasks)
			results = append(results, waveResults...)
			in.console.LogWaveComplete(wave, time.Since(waveStart))
			if execErr != nil {
				in.emitter.Emit(models.EventRunError, map[string]any{"message": execErr.Error()})
				return execErr
			}
		}

		anyFailed := false
		for _, r := range results {
			if r.Status == kernel.StatusFailed || r.Status == kernel.StatusRed {
				anyFailed = true
				break
			}
		}
		if anyFailed && in.repairEnabled {
			in.console.LogInfo(fmt.Sprintf("iteration %d: wave failures detected, entering self-repair loop", iteration))
			outcome, repairErr := runRepair(ctx, in.client, in.files, in.sessionID, "repair-agent", results, in.repairMax, in.repairSmokeURL)
			if repairErr != nil {
				in.emitter.Emit(models.EventRunError, map[string]any{"message": repairErr.Error()})
				return repairErr
			}
			in.console.LogInfo(fmt.Sprintf("self-repair finished: success=%v attempts=%d", outcome.Success, outcome.Attempts))
			lastRepairOutcome = &outcome
		}

		var touchedPaths []string
		for _, r := range results {
			touchedPaths = append(touchedPaths, r.FilesChanged...)
		}
		filesTotal += len(touchedPaths)

		refl := reflect.Score(reflect.Input{
			Plan:                   plan,
			Results:                results,
			FilesGeneratedTotal:    filesTotal,
			FilesGeneratedThisIter: len(touchedPaths),
			TouchedPaths:           touchedPaths,
			RouteDecisionMode:      in.mode,
			Platform:               in.platform,
			TargetScore:            defaultTargetScore,
			Iteration:              iteration,
			MaxIterations:          plan.MaxIterations,
			ReplanDepth:            replanDepth,
			MaxReplanDepth:         plan.ReplanPolicy.MaxReplanDepth,
		})

		decision, bundle := reflect.Decide(reflect.Input{
			Plan:           plan,
			Results:        results,
			TargetScore:    defaultTargetScore,
			Iteration:      iteration,
			MaxIterations:  plan.MaxIterations,
			ReplanDepth:    replanDepth,
			MaxReplanDepth: plan.ReplanPolicy.MaxReplanDepth,
		}, refl)

		summary := summarize(plan, results, iteration, time.Since(start), decision, lastRepairOutcome)
		digest := reflect.BuildDigest(refl, lastRepairOutcome)
		in.fileLog.LogDebug(digest)

		switch decision {
		case models.DecisionAccept:
			in.emitter.Emit(models.EventRunCompleted, map[string]any{"message": "run accepted", "iteration": iteration})
			in.console.LogRunSummary(summary)
			in.fileLog.LogRunSummary(summary)
			return nil
		case models.DecisionAbort:
			in.emitter.Emit(models.EventRunError, map[string]any{"message": "run aborted: " + refl.Summary})
			in.console.LogRunSummary(summary)
			in.fileLog.LogRunSummary(summary)
			return fmt.Errorf("run aborted after %d iterations: %s", iteration, refl.Summary)
		default: // DecisionIterate
			currentMessage = reflect.RewriteUserMessage(originalMessage, *bundle)
			replanDepth++
		}
	}
}

func summarize(plan *models.ExecutionPlan, results []kernel.TaskExecutionResult, iteration int, duration time.Duration, decision models.IterationDecision, repairOutcome *repair.Outcome) runlog.RunSummary {
	completed, failed := 0, 0
	for _, r := range results {
		if r.Status == kernel.StatusGreen || r.Status == kernel.StatusYellow {
			completed++
		} else {
			failed++
		}
	}

	reason := models.TerminationMaxIterations
	switch decision {
	case models.DecisionAccept:
		reason = models.TerminationAccept
	case models.DecisionAbort:
		reason = models.TerminationError
	}

	summary := runlog.RunSummary{
		TotalTasks:        len(plan.Tasks),
		Completed:         completed,
		Failed:            failed,
		Iterations:        iteration,
		Duration:          duration,
		TerminationReason: reason,
	}
	if repairOutcome != nil {
		summary.RepairAttempted = true
		summary.RepairAccepted = repairOutcome.Success
	}
	return summary
}
