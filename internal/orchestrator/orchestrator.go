// Package orchestrator implements the Three-Layer Orchestrator (spec §4.3):
// it runs Analysis, then Planning, then Execution in sequence over a shared
// Blackboard, wrapping each stage in transient retry with exponential
// backoff and emitting the stage lifecycle + budget-advertisement events.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/conductor-run/orchestrator/internal/events"
	"github.com/conductor-run/orchestrator/internal/models"
)

// Blackboard is the in-run key-value store holding session documents and
// the execution plan, shared read/write across stages.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewBlackboard returns an empty Blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{data: make(map[string]any)}
}

// Set stores a value under key.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
}

// Get retrieves the value stored under key.
func (b *Blackboard) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Stage is one of Analysis, Planning, or Execution. It reads whatever it
// needs from the Blackboard and writes its output back under its own key.
type Stage interface {
	Name() string
	Run(ctx context.Context, board *Blackboard) error
}

// RuntimeBudget bounds a run's steps/time/calls; nil fields are not
// advertised or enforced.
type RuntimeBudget struct {
	MaxSteps     *int64
	MaxDurationMs *int64
	MaxCalls     *int64
}

// Orchestrator sequences the three stages over a shared Blackboard.
type Orchestrator struct {
	stages  []Stage
	emitter *events.Emitter
	retry   RetryPolicy
}

// New constructs an Orchestrator running the given stages in order.
func New(emitter *events.Emitter, retry RetryPolicy, stages ...Stage) *Orchestrator {
	return &Orchestrator{stages: stages, emitter: emitter, retry: retry}
}

// Run executes every stage in sequence. It returns the first stage error
// encountered (already reported via run.error), or nil if every stage
// succeeded. Cancellation is returned as an AbortError with no run.error.
func (o *Orchestrator) Run(ctx context.Context, board *Blackboard, budget *RuntimeBudget) error {
	o.advertiseBudget(budget)

	for _, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			return AbortError{}
		}

		taskID := fmt.Sprintf("orchestrator-%s", stage.Name())
		o.emitter.Start(taskID, models.EventTaskStarted, map[string]any{
			"taskId": taskID, "waveId": "orchestration", "stage": stage.Name(),
		})

		err := WithRetry(ctx, o.retry, func(ctx context.Context) error {
			return stage.Run(ctx, board)
		})

		if err != nil {
			o.emitter.Complete(taskID, models.EventTaskBlocked, map[string]any{"taskId": taskID, "stage": stage.Name()})
			if _, aborted := err.(AbortError); aborted {
				return err
			}
			o.emitter.Emit(models.EventRunError, map[string]any{
				"message": fmt.Sprintf("%s layer failed: %s", stage.Name(), err.Error()),
			})
			return err
		}

		o.emitter.Complete(taskID, models.EventTaskCompleted, map[string]any{"taskId": taskID, "stage": stage.Name()})
	}

	return nil
}

// advertiseBudget emits one autonomy.budget event per present limit, with
// used=0 and a status computed by BudgetStatus from the limit alone (no usage
// yet at run start): "ok", or "exhausted" when the limit is 0 or less.
func (o *Orchestrator) advertiseBudget(budget *RuntimeBudget) {
	if budget == nil {
		return
	}

	emit := func(kind string, limit int64) {
		o.emitter.Emit(models.EventAutonomyBudget, map[string]any{
			"kind": kind, "limit": limit, "used": int64(0), "status": BudgetStatus(limit, 0),
		})
	}

	if budget.MaxSteps != nil {
		emit("steps", *budget.MaxSteps)
	}
	if budget.MaxDurationMs != nil {
		emit("ms", *budget.MaxDurationMs)
	}
	if budget.MaxCalls != nil {
		emit("calls", *budget.MaxCalls)
	}
}

// BudgetStatus classifies a (limit, used) pair as ok/warning/exhausted: a
// limit of zero or less is immediately exhausted; otherwise warning fires
// once remaining capacity drops to 20% or below.
func BudgetStatus(limit, used int64) string {
	if limit <= 0 {
		return "exhausted"
	}
	if used >= limit {
		return "exhausted"
	}
	remaining := float64(limit-used) / float64(limit)
	if remaining <= 0.2 {
		return "warning"
	}
	return "ok"
}
