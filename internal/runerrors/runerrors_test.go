package runerrors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskErrorWrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("boom")
	te := NewTaskError("t1", "skeleton", "agent failed", underlying)
	assert.ErrorIs(t, te, underlying)
	assert.Contains(t, te.Error(), "t1")
	assert.Contains(t, te.Error(), "skeleton")
}

func TestScheduleErrorAggregatesTaskErrorsAndUnwraps(t *testing.T) {
	se := NewScheduleError("wave", 3)
	se.AddTask(NewTaskError("t1", "pages", "x", nil))
	se.AddTask(NewTaskError("t2", "states", "y", nil))
	assert.Equal(t, 2, se.FailedTasks)
	assert.True(t, IsScheduleError(se))

	var target *TaskError
	assert.True(t, errors.As(se, &target))
}

func TestScheduleErrorDefaultsUnknownStageToTask(t *testing.T) {
	se := NewScheduleError("bogus", 1)
	assert.Equal(t, StageTask, se.Stage)
}

func TestTimeoutErrorSatisfiesDeadlineExceeded(t *testing.T) {
	te := NewTimeoutError("t1", 5*time.Second)
	assert.True(t, errors.Is(te, context.DeadlineExceeded))
	assert.True(t, IsTimeoutError(te))
}

func TestIsTimeoutErrorRecognizesBareDeadlineExceeded(t *testing.T) {
	assert.True(t, IsTimeoutError(context.DeadlineExceeded))
	assert.False(t, IsTimeoutError(errors.New("other")))
}

func TestIsTaskErrorFalseForNil(t *testing.T) {
	assert.False(t, IsTaskError(nil))
	assert.False(t, IsTimeoutError(nil))
	assert.False(t, IsScheduleError(nil))
}
