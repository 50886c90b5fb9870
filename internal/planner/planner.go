// Package planner implements the Plan Generator (spec §4.1): it turns a
// user request plus routing/platform context into a typed ExecutionPlan
// the Scheduler and Execution Kernel can consume.
package planner

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-run/orchestrator/internal/models"
)

// Input is everything the Plan Generator needs to produce a plan.
type Input struct {
	UserMessage        string
	AgentID            string
	Mode               string // "creator" or "implementer"
	Platform           string // web, desktop, mobile, miniprogram
	ProjectType        string
	TechStack          []string
	UILibrarySelection string
	Now                time.Time
}

// Generate builds an ExecutionPlan from in, implementing every branch of
// spec.md §4.1: repair-intent short-circuit, brainstorm/direct detail
// scoring, dependency-checklist construction, and UIBlueprint assembly.
func Generate(in Input) (*models.ExecutionPlan, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	id := PlanID(in.UserMessage, in.AgentID, in.Mode, in.Platform, in.ProjectType)

	if IsRepairIntent(in.UserMessage) {
		return buildRepairPlan(id, now, in), nil
	}

	score := detailScore(in.UserMessage)
	brainstorm := score <= 1 || (in.Mode == "creator" && score <= 2)

	strategy := models.StrategyDirect
	maxIterations := 5
	if brainstorm {
		strategy = models.StrategyBrainstorm
		maxIterations = 6
	}

	checklist := BuildDependencyChecklist(in.ProjectType, in.TechStack, in.UILibrarySelection)
	blueprint := BuildUIBlueprint(in.UserMessage, in.Platform, brainstorm)

	tasks := buildStandardTasks(brainstorm)

	plan := &models.ExecutionPlan{
		ID:             id,
		CreatedAt:      now,
		UserMessage:    in.UserMessage,
		RouteDecision:  models.RouteDecision{Mode: in.Mode},
		MaxIterations:  maxIterations,
		Tasks:          tasks,
		ReplanPolicy:   models.ReplanPolicy{MaxReplanDepth: defaultMaxReplanDepth(brainstorm)},
		DependencyHint: checklist,
		Metadata: models.PlanMetadata{
			Platform:            in.Platform,
			TechStack:           in.TechStack,
			ProjectType:         in.ProjectType,
			RequirementStrategy: strategy,
			UIBlueprint:         blueprint,
		},
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func defaultMaxReplanDepth(brainstorm bool) int {
	if brainstorm {
		return 2
	}
	return 1
}

// buildRepairPlan implements the two-task {repair -> quality} plan for
// repair-intent messages, with maxIterations fixed at 2.
func buildRepairPlan(id string, now time.Time, in Input) *models.ExecutionPlan {
	tasks := []models.ExecutionTask{
		{ID: "repair", Phase: models.PhaseRepair, AgentRole: "repair-agent", Mode: models.ModeSerial, Priority: 10},
		{ID: "quality", Phase: models.PhaseQuality, AgentRole: "quality-agent", Mode: models.ModeSerial, DependsOn: []string{"repair"}, Priority: 10},
	}
	return &models.ExecutionPlan{
		ID:            id,
		CreatedAt:     now,
		UserMessage:   in.UserMessage,
		RouteDecision: models.RouteDecision{Mode: in.Mode},
		MaxIterations: 2,
		Tasks:         tasks,
		ReplanPolicy:  models.ReplanPolicy{MaxReplanDepth: 1},
		Metadata: models.PlanMetadata{
			Platform:            in.Platform,
			TechStack:           in.TechStack,
			ProjectType:         in.ProjectType,
			RequirementStrategy: models.StrategyDirect,
		},
	}
}

// buildStandardTasks implements spec.md §4.1's phase order and dependency
// arcs for a non-repair plan. The shared-components task is optional per
// §4.1; it is included whenever the plan uses the brainstorm strategy, since
// a brainstorm run's extra analysis view and cross-view-linkage interaction
// (see BuildUIBlueprint) are the case where multiple views actually share
// components worth factoring out up front.
func buildStandardTasks(brainstorm bool) []models.ExecutionTask {
	skeletonGateDeps := []string{"skeleton"}
	if brainstorm {
		skeletonGateDeps = append(skeletonGateDeps, "shared-components")
	}

	tasks := []models.ExecutionTask{
		{ID: "design-system", Phase: models.PhaseDesignSystem, AgentRole: "design-agent", Mode: models.ModeSerial, Priority: 10},
		{ID: "skeleton", Phase: models.PhaseSkeleton, AgentRole: "skeleton-agent", Mode: models.ModeSerial, DependsOn: []string{"design-system"}, Priority: 10},
	}

	if brainstorm {
		tasks = append(tasks, models.ExecutionTask{
			ID: "shared-components", Phase: models.PhaseSharedComponent, AgentRole: "shared-component-agent", Mode: models.ModeParallel, DependsOn: []string{"design-system"}, Priority: 10,
		})
	}

	tasks = append(tasks,
		models.ExecutionTask{ID: "skeleton-l1-gate", Phase: models.PhaseSkeletonL1Gate, AgentRole: "gate-agent", Mode: models.ModeSerial, DependsOn: skeletonGateDeps, Priority: 10},
		models.ExecutionTask{ID: "contract-freeze", Phase: models.PhaseContractFreeze, AgentRole: "contract-agent", Mode: models.ModeSerial, DependsOn: []string{"skeleton-l1-gate"}, Priority: 10},
		models.ExecutionTask{ID: "research", Phase: models.PhaseResearch, AgentRole: "research-agent", Mode: models.ModeSerial, DependsOn: []string{"contract-freeze"}, Priority: 10},
		models.ExecutionTask{ID: "pages", Phase: models.PhasePages, AgentRole: "frontend-agent", Mode: models.ModeParallel, DependsOn: []string{"research"}, Priority: 10},
		models.ExecutionTask{ID: "interactions", Phase: models.PhaseInteractions, AgentRole: "frontend-agent", Mode: models.ModeParallel, DependsOn: []string{"research"}, Priority: 10},
		models.ExecutionTask{ID: "states", Phase: models.PhaseStates, AgentRole: "frontend-agent", Mode: models.ModeParallel, DependsOn: []string{"research"}, Priority: 10},
		models.ExecutionTask{ID: "quality", Phase: models.PhaseQuality, AgentRole: "quality-agent", Mode: models.ModeSerial, DependsOn: []string{"pages", "interactions", "states"}, Priority: 10},
	)

	return tasks
}

// PlanID implements spec.md §4.1's deterministic plan-id hash: a SHA-1
// digest of the normalized, pipe-joined key, truncated to 8 hex characters
// (§9 Open Question: any equally stable hash satisfies the determinism
// property; SHA-1 matches the source's own choice).
func PlanID(userMessage, agentID, mode, platform, projectType string) string {
	key := strings.Join([]string{
		normalizeForHash(userMessage), agentID, mode, platform, projectType,
	}, "|")
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}

func normalizeForHash(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// NewRunID generates a fresh run identifier. Not part of the deterministic
// plan-id computation: runs are entropy-keyed even when replanning the
// same plan.
func NewRunID() string {
	return uuid.NewString()
}
