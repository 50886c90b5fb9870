package planner

import (
	"github.com/conductor-run/orchestrator/internal/models"
)

// routePrefixForPlatform implements spec.md §4.1's platform-driven route
// prefix selection.
func routePrefixForPlatform(platform string) string {
	switch platform {
	case "mobile":
		return models.RoutePrefixScreen
	case "miniprogram":
		return models.RoutePrefixPage
	default: // web, desktop
		return models.RoutePrefixView
	}
}

// BuildUIBlueprint constructs the immutable reasoning contract a plan
// carries for the run's full lifetime. brainstorm adds the secondary
// analysis view and cross-view-linkage interaction spec.md §4.1 requires.
func BuildUIBlueprint(intent string, platform string, brainstorm bool) models.UIBlueprint {
	prefix := routePrefixForPlatform(platform)

	routes := []models.UIRoute{
		{ID: prefix + "-1", Path: "/" + prefix + "/home", Role: "primary"},
	}
	interactions := []models.UIInteraction{
		{ID: "interaction-1", Statement: "navigate between primary views", Mandatory: true},
	}
	states := []models.UIState{
		{ID: "state-loading", Description: "loading", Mandatory: true},
		{ID: "state-error", Description: "error", Mandatory: true},
	}

	minViewCount := 2
	if brainstorm {
		minViewCount = 3
		routes = append(routes, models.UIRoute{
			ID:   prefix + "-analysis",
			Path: "/" + prefix + "/analysis",
			Role: "analysis",
		})
		interactions = append(interactions, models.UIInteraction{
			ID:        "interaction-cross-view-linkage",
			Statement: "cross-view navigation links the analysis view back to primary views",
			Mandatory: true,
		})
	}

	return models.UIBlueprint{
		Intent:  intent,
		Modules: []string{"layout", "navigation"},
		Routes:  routes,
		Interactions: interactions,
		States:       states,
		Forms:        nil,
		AcceptanceGates: models.AcceptanceGates{
			MinViewCount:                   minViewCount,
			MinDataSurfaceCount:            1,
			MinFormFlowCount:               1,
			RequireValidationFeedback:      true,
			RequireExplicitStateTransition: true,
		},
	}
}
