package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/events"
	"github.com/conductor-run/orchestrator/internal/models"
)

type recordingSink struct {
	events []models.RuntimeEvent
}

func (r *recordingSink) Receive(e models.RuntimeEvent) { r.events = append(r.events, e) }

type fnStage struct {
	name string
	fn   func(ctx context.Context, board *Blackboard) error
}

func (s fnStage) Name() string { return s.name }
func (s fnStage) Run(ctx context.Context, board *Blackboard) error {
	return s.fn(ctx, board)
}

func TestRunSequencesStagesOverBlackboard(t *testing.T) {
	sink := &recordingSink{}
	e := events.New("s1", "r1", nil, sink)
	board := NewBlackboard()

	analysis := fnStage{"analysis", func(ctx context.Context, b *Blackboard) error {
		b.Set("analysis", "done")
		return nil
	}}
	planning := fnStage{"planning", func(ctx context.Context, b *Blackboard) error {
		v, ok := b.Get("analysis")
		require.True(t, ok)
		assert.Equal(t, "done", v)
		b.Set("plan", "ready")
		return nil
	}}

	o := New(e, DefaultRetryPolicy(), analysis, planning)
	err := o.Run(context.Background(), board, nil)
	require.NoError(t, err)

	plan, ok := board.Get("plan")
	require.True(t, ok)
	assert.Equal(t, "ready", plan)
}

func TestRunEmitsRunErrorOnNonTransientFailure(t *testing.T) {
	sink := &recordingSink{}
	e := events.New("s1", "r1", nil, sink)
	board := NewBlackboard()

	failing := fnStage{"planning", func(ctx context.Context, b *Blackboard) error {
		return errors.New("bad plan")
	}}

	o := New(e, DefaultRetryPolicy(), failing)
	err := o.Run(context.Background(), board, nil)
	assert.Error(t, err)

	var sawRunError bool
	for _, evt := range sink.events {
		if evt.Type == models.EventRunError {
			sawRunError = true
			assert.Contains(t, evt.Payload["message"], "planning layer failed")
		}
	}
	assert.True(t, sawRunError)
}

func TestRunStopsAfterAbort(t *testing.T) {
	e := events.New("s1", "r1", nil)
	board := NewBlackboard()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage := fnStage{"analysis", func(ctx context.Context, b *Blackboard) error { return nil }}
	o := New(e, DefaultRetryPolicy(), stage)
	err := o.Run(ctx, board, nil)
	assert.ErrorIs(t, err, AbortError{})
}

func TestAdvertiseBudgetEmitsPerPresentLimit(t *testing.T) {
	sink := &recordingSink{}
	e := events.New("s1", "r1", nil, sink)
	board := NewBlackboard()
	steps := int64(100)

	o := New(e, DefaultRetryPolicy())
	err := o.Run(context.Background(), board, &RuntimeBudget{MaxSteps: &steps})
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventAutonomyBudget, sink.events[0].Type)
	assert.Equal(t, "ok", sink.events[0].Payload["status"])
}

func TestIsTransientClassifiesByMessageFragment(t *testing.T) {
	assert.True(t, IsTransient(errors.New("socket hang up")))
	assert.True(t, IsTransient(errors.New("request timed out")))
	assert.False(t, IsTransient(errors.New("invalid schema")))
}

func TestWithRetryRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: 1}, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("network blip")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryStopsImmediatelyOnNonTransient(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: 1}, func(ctx context.Context) error {
		attempts++
		return errors.New("schema invalid")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBudgetStatusClassification(t *testing.T) {
	assert.Equal(t, "exhausted", BudgetStatus(0, 0))
	assert.Equal(t, "exhausted", BudgetStatus(10, 10))
	assert.Equal(t, "warning", BudgetStatus(10, 9))
	assert.Equal(t, "ok", BudgetStatus(10, 0))
}
