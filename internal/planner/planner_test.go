package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/models"
)

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestGenerateBrainstormActivatesOnLowDetailScore(t *testing.T) {
	plan, err := Generate(Input{
		UserMessage: "生成web端的外卖后台管理系统",
		Mode:        "creator",
		Platform:    "web",
		Now:         fixedNow(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyBrainstorm, plan.Metadata.RequirementStrategy)
	assert.Equal(t, 6, plan.MaxIterations)
	assert.Equal(t, 3, plan.Metadata.UIBlueprint.AcceptanceGates.MinViewCount)
	assert.GreaterOrEqual(t, len(plan.Metadata.UIBlueprint.Routes), 2)
}

func TestGenerateDirectActivatesOnHighDetailScoreImplementerMode(t *testing.T) {
	message := "1. Add a login page\n2. Add a dashboard page\n3. Add a settings page\n4. Add a profile page"
	plan, err := Generate(Input{
		UserMessage: message,
		Mode:        "implementer",
		Platform:    "web",
		Now:         fixedNow(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyDirect, plan.Metadata.RequirementStrategy)
	assert.Equal(t, 5, plan.MaxIterations)
	assert.Equal(t, 2, plan.Metadata.UIBlueprint.AcceptanceGates.MinViewCount)
}

func TestGenerateBrainstormIncludesSharedComponentsTask(t *testing.T) {
	plan, err := Generate(Input{
		UserMessage: "生成web端的外卖后台管理系统",
		Mode:        "creator",
		Platform:    "web",
		Now:         fixedNow(),
	})
	require.NoError(t, err)

	var shared, gate *models.ExecutionTask
	for i := range plan.Tasks {
		switch plan.Tasks[i].ID {
		case "shared-components":
			shared = &plan.Tasks[i]
		case "skeleton-l1-gate":
			gate = &plan.Tasks[i]
		}
	}
	require.NotNil(t, shared)
	require.NotNil(t, gate)
	assert.Equal(t, models.PhaseSharedComponent, shared.Phase)
	assert.Contains(t, shared.DependsOn, "design-system")
	assert.Contains(t, gate.DependsOn, "shared-components")
	assert.Contains(t, gate.DependsOn, "skeleton")
}

func TestGenerateDirectOmitsSharedComponentsTask(t *testing.T) {
	message := "1. Add a login page\n2. Add a dashboard page\n3. Add a settings page\n4. Add a profile page"
	plan, err := Generate(Input{
		UserMessage: message,
		Mode:        "implementer",
		Platform:    "web",
		Now:         fixedNow(),
	})
	require.NoError(t, err)

	for _, task := range plan.Tasks {
		assert.NotEqual(t, "shared-components", task.ID)
	}
}

func TestGenerateRepairIntentYieldsTwoTaskPlan(t *testing.T) {
	plan, err := Generate(Input{
		UserMessage: "请修复登录页问题",
		Mode:        "implementer",
		Platform:    "web",
		Now:         fixedNow(),
	})
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, models.PhaseRepair, plan.Tasks[0].Phase)
	assert.Equal(t, models.PhaseQuality, plan.Tasks[1].Phase)
	assert.Equal(t, 2, plan.MaxIterations)
}

func TestGenerateIsDeterministicModuloTimestamp(t *testing.T) {
	in := Input{UserMessage: "Build a dashboard", Mode: "implementer", Platform: "web", ProjectType: "next-js"}
	p1, err := Generate(in)
	require.NoError(t, err)
	p2, err := Generate(in)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	var phases1, phases2 []models.Phase
	for _, task := range p1.Tasks {
		phases1 = append(phases1, task.Phase)
	}
	for _, task := range p2.Tasks {
		phases2 = append(phases2, task.Phase)
	}
	assert.Equal(t, phases1, phases2)
}

func TestPlanIDChangesWithInput(t *testing.T) {
	a := PlanID("hello", "agent-1", "creator", "web", "next-js")
	b := PlanID("different message", "agent-1", "creator", "web", "next-js")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 8)
}

func TestBuildDependencyChecklistAlwaysIncludesReact(t *testing.T) {
	checklist := BuildDependencyChecklist("unknown-type", nil, "")
	assert.Contains(t, checklist, "react")
}

func TestBuildDependencyChecklistMapsUILibrary(t *testing.T) {
	checklist := BuildDependencyChecklist("next-js", nil, "shadcn")
	assert.Contains(t, checklist, "@radix-ui/react-slot")
}

func TestIsRepairIntentMatchesCaseInsensitively(t *testing.T) {
	assert.True(t, IsRepairIntent("please FIX the login bug"))
	assert.True(t, IsRepairIntent("排查性能问题"))
	assert.False(t, IsRepairIntent("build a new dashboard"))
}

func TestBuildUIBlueprintPlatformRoutePrefix(t *testing.T) {
	bp := BuildUIBlueprint("intent", "mobile", false)
	assert.Contains(t, bp.Routes[0].Path, "/screen/")

	bp = BuildUIBlueprint("intent", "miniprogram", false)
	assert.Contains(t, bp.Routes[0].Path, "/page/")

	bp = BuildUIBlueprint("intent", "web", false)
	assert.Contains(t, bp.Routes[0].Path, "/view/")
}

func TestDetailScoreCountsCJKAndLatinUnits(t *testing.T) {
	assert.GreaterOrEqual(t, detailScore(strings.Repeat("字", 20)), 1)
	assert.Equal(t, 0, detailScore("hi"))
}
