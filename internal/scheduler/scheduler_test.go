package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/models"
)

func TestValidateTasks(t *testing.T) {
	t.Run("valid tasks pass through unchanged", func(t *testing.T) {
		out, err := ValidateTasks([]models.ExecutionTask{
			{ID: "1"},
			{ID: "2", DependsOn: []string{"1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, []string{out[0].ID, out[1].ID})
		assert.Equal(t, []string{"1"}, out[1].DependsOn)
	})

	t.Run("unknown dependency is dropped, not an error", func(t *testing.T) {
		out, err := ValidateTasks([]models.ExecutionTask{
			{ID: "1", DependsOn: []string{"999"}},
		})
		require.NoError(t, err)
		assert.Empty(t, out[0].DependsOn)
	})

	t.Run("duplicate id is renamed by suffixing #n", func(t *testing.T) {
		out, err := ValidateTasks([]models.ExecutionTask{
			{ID: "1"},
			{ID: "1"},
			{ID: "1"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "1#2", "1#3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	})

	t.Run("self-edge is dropped", func(t *testing.T) {
		out, err := ValidateTasks([]models.ExecutionTask{
			{ID: "1", DependsOn: []string{"1"}},
		})
		require.NoError(t, err)
		assert.Empty(t, out[0].DependsOn)
	})

	t.Run("duplicate dependency entries collapse to one", func(t *testing.T) {
		out, err := ValidateTasks([]models.ExecutionTask{
			{ID: "1"},
			{ID: "2", DependsOn: []string{"1", "1", "1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, out[1].DependsOn)
	})

	t.Run("empty id is unrecoverable", func(t *testing.T) {
		_, err := ValidateTasks([]models.ExecutionTask{{ID: ""}})
		assert.Error(t, err)
	})

	t.Run("empty task list", func(t *testing.T) {
		out, err := ValidateTasks(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestScheduleLinearChain(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "1"},
		{ID: "2", DependsOn: []string{"1"}},
		{ID: "3", DependsOn: []string{"2"}},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	require.False(t, sched.HasCycle)
	require.Len(t, sched.Waves, 3)
	assert.Equal(t, []string{"1"}, sched.Waves[0].TaskIDs())
	assert.Equal(t, []string{"2"}, sched.Waves[1].TaskIDs())
	assert.Equal(t, []string{"3"}, sched.Waves[2].TaskIDs())
	assert.Equal(t, []string{"1", "2", "3"}, sched.OrderedTaskIDs)
}

func TestScheduleFanOutSameWave(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "1"},
		{ID: "2", DependsOn: []string{"1"}},
		{ID: "3", DependsOn: []string{"1"}},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	require.Len(t, sched.Waves, 2)
	assert.Equal(t, []string{"2", "3"}, sched.Waves[1].TaskIDs())
}

func TestScheduleDetectsCycle(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "1", DependsOn: []string{"2"}},
		{ID: "2", DependsOn: []string{"1"}},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	assert.True(t, sched.HasCycle)
	assert.Equal(t, []string{"1", "2"}, sched.ResidualTaskIDs)
}

func TestScheduleDropsSelfReferenceAndSchedulesNormally(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "1", DependsOn: []string{"1"}},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	assert.False(t, sched.HasCycle)
	require.Len(t, sched.Waves, 1)
	assert.Equal(t, []string{"1"}, sched.Waves[0].TaskIDs())
}

func TestScheduleEmpty(t *testing.T) {
	sched, err := Schedule(nil)
	require.NoError(t, err)
	assert.Empty(t, sched.Waves)
	assert.False(t, sched.HasCycle)
}

func TestScheduleOrdersByPriorityThenID(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "b", Priority: 1},
		{ID: "a", Priority: 5},
		{ID: "c", Priority: 5},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	require.Len(t, sched.Waves, 1)
	assert.Equal(t, []string{"a", "c", "b"}, sched.Waves[0].TaskIDs())
}

func TestScheduleGroupsByMode(t *testing.T) {
	tasks := []models.ExecutionTask{
		{ID: "1", Mode: models.ModeSerial, Priority: 2},
		{ID: "2", Mode: models.ModeParallel, Priority: 1},
	}

	sched, err := Schedule(tasks)
	require.NoError(t, err)
	require.Len(t, sched.Waves, 1)
	require.Len(t, sched.Waves[0].Groups, 2)
	assert.Equal(t, models.ModeSerial, sched.Waves[0].Groups[0].Mode)
	assert.Equal(t, models.ModeParallel, sched.Waves[0].Groups[1].Mode)
}

func TestScheduleDropsUnknownDependency(t *testing.T) {
	sched, err := Schedule([]models.ExecutionTask{{ID: "1", DependsOn: []string{"missing"}}})
	require.NoError(t, err)
	assert.False(t, sched.HasCycle)
	require.Len(t, sched.Waves, 1)
	assert.Equal(t, []string{"1"}, sched.Waves[0].TaskIDs())
}

func TestScheduleEmptyIDPropagatesError(t *testing.T) {
	_, err := Schedule([]models.ExecutionTask{{ID: ""}})
	assert.Error(t, err)
}
