// Package scheduler computes execution waves for an ExecutionPlan: a
// topological ordering of tasks, grouped so that every task in a wave is
// only ready once every earlier wave has completed.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/conductor-run/orchestrator/internal/models"
)

// dependencyGraph is the adjacency representation built from a plan's tasks:
// Edges maps a prerequisite task id to the task ids that depend on it.
type dependencyGraph struct {
	Tasks    map[string]*models.ExecutionTask
	Edges    map[string][]string
	InDegree map[string]int
}

// ValidateTasks normalizes a plan's tasks per spec.md §4.2: a duplicate task
// id is renamed deterministically by suffixing "#n" (n = its occurrence
// count) rather than rejected, and each task's DependsOn is normalized by
// dropping unknown references, self-edges, and duplicate entries while
// preserving first-occurrence order. An empty id is the only case left
// unrecoverable, since there is no sensible rename for it.
func ValidateTasks(tasks []models.ExecutionTask) ([]models.ExecutionTask, error) {
	out := make([]models.ExecutionTask, len(tasks))
	copy(out, tasks)

	occurrences := make(map[string]int, len(out))
	for i := range out {
		if out[i].ID == "" {
			return nil, fmt.Errorf("task at index %d has empty id", i)
		}
		occurrences[out[i].ID]++
		if n := occurrences[out[i].ID]; n > 1 {
			out[i].ID = fmt.Sprintf("%s#%d", out[i].ID, n)
		}
	}

	ids := make(map[string]bool, len(out))
	for _, t := range out {
		ids[t.ID] = true
	}

	for i := range out {
		var deps []string
		depSeen := make(map[string]bool, len(out[i].DependsOn))
		for _, dep := range out[i].DependsOn {
			if dep == out[i].ID || !ids[dep] || depSeen[dep] {
				continue
			}
			depSeen[dep] = true
			deps = append(deps, dep)
		}
		out[i].DependsOn = deps
	}

	return out, nil
}

// buildGraph assumes tasks have already been normalized by ValidateTasks:
// every DependsOn entry resolves to a task in the same slice and carries no
// self-edges or duplicates.
func buildGraph(tasks []models.ExecutionTask) *dependencyGraph {
	g := &dependencyGraph{
		Tasks:    make(map[string]*models.ExecutionTask, len(tasks)),
		Edges:    make(map[string][]string),
		InDegree: make(map[string]int, len(tasks)),
	}

	for i := range tasks {
		g.Tasks[tasks[i].ID] = &tasks[i]
		g.InDegree[tasks[i].ID] = 0
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			g.Edges[dep] = append(g.Edges[dep], t.ID)
			g.InDegree[t.ID]++
		}
	}

	return g
}

// Schedule computes the ExecutionSchedule for a set of tasks using Kahn's
// algorithm: tasks with no remaining dependencies form the next wave, grouped
// by ExecutionMode, ordered deterministically by priority (desc) then id
// (asc) within a wave. Tasks are normalized first via ValidateTasks
// (duplicate-id rename, dependency cleanup), so only a genuinely unresolved
// id is a hard failure.
//
// A cycle is reported via ExecutionSchedule.HasCycle (with the unscheduled
// remainder in ResidualTaskIDs) rather than an error, so callers that want to
// surface it as a run.error event can do so at the orchestration boundary
// instead of deep in the scheduler. Per spec.md §4.2, a cycle is only ever
// detected this way: once every wave Kahn's algorithm can emit has been
// emitted, whatever tasks still have nonzero in-degree form the cycle.
func Schedule(tasks []models.ExecutionTask) (models.ExecutionSchedule, error) {
	normalized, err := ValidateTasks(tasks)
	if err != nil {
		return models.ExecutionSchedule{}, err
	}

	if len(normalized) == 0 {
		return models.ExecutionSchedule{}, nil
	}

	graph := buildGraph(normalized)

	inDegree := make(map[string]int, len(graph.InDegree))
	for k, v := range graph.InDegree {
		inDegree[k] = v
	}

	var waves []models.Wave
	var ordered []string

	for len(inDegree) > 0 {
		var ready []string
		for id, degree := range inDegree {
			if degree == 0 {
				ready = append(ready, id)
			}
		}

		if len(ready) == 0 {
			residual := make([]string, 0, len(inDegree))
			for id := range inDegree {
				residual = append(residual, id)
			}
			sort.Strings(residual)
			return models.ExecutionSchedule{
				Waves:           waves,
				OrderedTaskIDs:  ordered,
				HasCycle:        true,
				ResidualTaskIDs: residual,
			}, nil
		}

		sort.Slice(ready, func(i, j int) bool {
			ti, tj := graph.Tasks[ready[i]], graph.Tasks[ready[j]]
			if ti.Priority != tj.Priority {
				return ti.Priority > tj.Priority
			}
			return ready[i] < ready[j]
		})

		groups := groupByMode(ready, graph)

		waves = append(waves, models.Wave{
			Index:  len(waves),
			Groups: groups,
		})
		ordered = append(ordered, ready...)

		for _, id := range ready {
			delete(inDegree, id)
			for _, dependent := range graph.Edges[id] {
				if _, exists := inDegree[dependent]; exists {
					inDegree[dependent]--
				}
			}
		}
	}

	return models.ExecutionSchedule{
		Waves:          waves,
		OrderedTaskIDs: ordered,
	}, nil
}

// groupByMode splits a wave's ready task ids into ScheduledTaskGroups,
// preserving the priority/id order already established by the caller and
// grouping consecutive runs of the same ExecutionMode together.
func groupByMode(ready []string, graph *dependencyGraph) []models.ScheduledTaskGroup {
	var groups []models.ScheduledTaskGroup
	var current *models.ScheduledTaskGroup

	for _, id := range ready {
		mode := graph.Tasks[id].Mode
		if mode == "" {
			mode = models.ModeParallel
		}
		if current == nil || current.Mode != mode {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &models.ScheduledTaskGroup{Mode: mode}
		}
		current.TaskIDs = append(current.TaskIDs, id)
	}
	if current != nil {
		groups = append(groups, *current)
	}

	return groups
}
