// Package kernel implements the Execution Kernel: it runs one
// ExecutionSchedule wave by wave under bounded parallelism, emitting the
// task and artifact events for each task, and exposes the read-budget and
// write-policy checks (CheckRead, CheckWrite). It runs a schedule once; the
// accept/replan loop around it lives in its caller (internal/cli's runLoop).
// The kernel emits no tool.call events and does not stop a run on a
// duration or tool-call budget.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/conductor-run/orchestrator/internal/events"
	"github.com/conductor-run/orchestrator/internal/models"
	"github.com/conductor-run/orchestrator/internal/policy"
)

// TaskRunner executes a single ExecutionTask and reports its outcome. The
// LLM-invocation, tool dispatch, and artifact mutation machinery an agent
// turn needs live behind this interface (internal/llmclient, internal/store)
// so the kernel itself stays orchestration-only.
type TaskRunner interface {
	RunTask(ctx context.Context, task models.ExecutionTask) (TaskExecutionResult, error)
}

// WriteMode selects whether the write tool may overwrite an existing file.
type WriteMode string

const (
	WriteModeDefault            WriteMode = ""
	WriteModeAllowFullOverwrite WriteMode = "allow_full_overwrite"
)

// TaskExecutionResult is the outcome of one task within a wave.
type TaskExecutionResult struct {
	TaskID        string
	Status        string // "green", "yellow", "red", "failed", "blocked"
	Output        string
	Err           error
	FilesChanged  []string
	ToolCallCount int
}

const (
	StatusGreen   = "green"
	StatusYellow  = "yellow"
	StatusRed     = "red"
	StatusFailed  = "failed"
	StatusBlocked = "blocked"
)

// Policies bundles the two stateful per-session policies the kernel
// consults; the runtime-artifact path policy is the stateless
// policy.EvaluatePath, applied in CheckWrite.
type Policies struct {
	Contract   *policy.ContractPolicy
	ReadBudget *policy.ReadBudget
}

// Kernel executes an ExecutionSchedule wave by wave.
type Kernel struct {
	runner   TaskRunner
	emitter  *events.Emitter
	policies Policies
}

// New constructs a Kernel.
func New(runner TaskRunner, emitter *events.Emitter, policies Policies) *Kernel {
	return &Kernel{runner: runner, emitter: emitter, policies: policies}
}

// waveTaskResult pairs a task id with its outcome for channel delivery.
type waveTaskResult struct {
	taskID string
	result TaskExecutionResult
	err    error
}

// ExecuteSchedule runs every wave in order, stopping at the first wave whose
// execution returns an error (mirroring the teacher's ExecutePlan: partial
// results from completed waves are still returned alongside the error).
func (k *Kernel) ExecuteSchedule(ctx context.Context, schedule models.ExecutionSchedule, tasks []models.ExecutionTask) ([]TaskExecutionResult, error) {
	taskMap := make(map[string]models.ExecutionTask, len(tasks))
	for _, t := range tasks {
		taskMap[t.ID] = t
	}

	var all []TaskExecutionResult
	for _, wave := range schedule.Waves {
		results, err := k.executeWave(ctx, wave, taskMap)
		all = append(all, results...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// executeWave runs every group in the wave in order: a serial group forces
// the barrier §5 requires (its tasks run one at a time, and neither the
// group before nor the group after it overlaps with it), while a
// parallel/pipeline group's tasks run concurrently against each other.
func (k *Kernel) executeWave(ctx context.Context, wave models.Wave, taskMap map[string]models.ExecutionTask) ([]TaskExecutionResult, error) {
	var all []TaskExecutionResult
	for _, group := range wave.Groups {
		results, err := k.executeGroup(ctx, group, taskMap)
		all = append(all, results...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// executeGroup runs every task in a single ScheduledTaskGroup with bounded
// parallelism: a serial group caps concurrency at 1 so its tasks run one at
// a time; any other mode caps concurrency at the group's own task count (no
// artificial cap below that), mirroring the teacher's "cap at task count,
// never lower than 1" sizing rule.
func (k *Kernel) executeGroup(ctx context.Context, group models.ScheduledTaskGroup, taskMap map[string]models.ExecutionTask) ([]TaskExecutionResult, error) {
	taskIDs := group.TaskIDs
	if len(taskIDs) == 0 {
		return nil, nil
	}

	maxConcurrency := len(taskIDs)
	if group.Mode == models.ModeSerial {
		maxConcurrency = 1
	}
	if maxConcurrency == 0 {
		maxConcurrency = 1
	}

	sem := make(chan struct{}, maxConcurrency)
	resultsCh := make(chan waveTaskResult, len(taskIDs))

	var wg sync.WaitGroup
	var launchErr error

launch:
	for _, id := range taskIDs {
		if err := ctx.Err(); err != nil {
			launchErr = err
			break launch
		}

		task, ok := taskMap[id]
		if !ok {
			launchErr = fmt.Errorf("kernel: task %s not found in schedule", id)
			break launch
		}

		select {
		case <-ctx.Done():
			launchErr = ctx.Err()
			break launch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(task models.ExecutionTask) {
			defer wg.Done()
			defer func() { <-sem }()

			k.emitter.Start(task.ID, models.EventTaskStarted, map[string]any{"taskId": task.ID, "phase": string(task.Phase)})

			result, err := k.runner.RunTask(ctx, task)
			if err != nil && result.Err == nil {
				result.Err = err
			}
			if result.Status == "" {
				if err != nil {
					result.Status = StatusFailed
				} else {
					result.Status = StatusGreen
				}
			}

			eventType := models.EventTaskCompleted
			if result.Status == StatusFailed || result.Status == StatusBlocked {
				eventType = models.EventTaskBlocked
			}
			k.emitter.Complete(task.ID, eventType, map[string]any{"taskId": task.ID, "status": result.Status})

			for _, f := range result.FilesChanged {
				k.emitter.Emit(models.EventArtifactChanged, map[string]any{"taskId": task.ID, "path": f})
			}

			select {
			case resultsCh <- waveTaskResult{taskID: task.ID, result: result, err: err}:
			case <-ctx.Done():
			}
		}(task)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	resultMap := make(map[string]TaskExecutionResult, len(taskIDs))
	var execErr error
	for r := range resultsCh {
		resultMap[r.taskID] = r.result
		if execErr == nil && r.err != nil {
			execErr = r.err
		}
	}

	ordered := make([]TaskExecutionResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		if r, ok := resultMap[id]; ok {
			ordered = append(ordered, r)
		}
	}

	if launchErr != nil && execErr == nil {
		execErr = launchErr
	}

	return ordered, execErr
}

// CheckWrite runs a proposed write target through the runtime-artifact path
// policy and the contract-freeze policy, in that order, returning the
// resolved normalized path on success.
func (k *Kernel) CheckWrite(path string) (string, error) {
	decision := policy.EvaluatePath(path)
	if !decision.Allowed {
		return "", fmt.Errorf("RUNTIME_ARTIFACT_PATH_BLOCKED")
	}
	if k.policies.Contract != nil {
		if err := k.policies.Contract.CheckWrite(decision.NormalizedPath); err != nil {
			return "", err
		}
	}
	return decision.NormalizedPath, nil
}

// CheckOverwrite enforces §4.4's write-mode rule: overwriting an existing
// file is blocked unless mode is allow_full_overwrite, the agent role is a
// frontend-* role, or the session is in creator mode.
func CheckOverwrite(exists bool, mode WriteMode, agentRole string, sessionMode models.SessionMode) bool {
	if !exists {
		return true
	}
	if mode == WriteModeAllowFullOverwrite {
		return true
	}
	if len(agentRole) >= len("frontend-") && agentRole[:len("frontend-")] == "frontend-" {
		return true
	}
	return sessionMode == models.ModeCreator
}

// CheckRead enforces the read-budget policy for one Read tool call.
func (k *Kernel) CheckRead(sessionID string, iteration int, path string, hasExistingArtifacts bool) error {
	if k.policies.ReadBudget == nil {
		return nil
	}
	return k.policies.ReadBudget.CheckAndRecord(sessionID, iteration, path, hasExistingArtifacts)
}
