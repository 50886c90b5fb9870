package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conductor-run/orchestrator/internal/planner"
	"github.com/conductor-run/orchestrator/internal/scheduler"
)

func newValidateCommand() *cobra.Command {
	var mode, platform, projectType string

	cmd := &cobra.Command{
		Use:   "validate <user-message>",
		Short: "Generate and schedule a plan without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planner.Generate(planner.Input{
				UserMessage: args[0],
				Mode:        mode,
				Platform:    platform,
				ProjectType: projectType,
			})
			if err != nil {
				return fmt.Errorf("plan generation failed: %w", err)
			}

			schedule, err := scheduler.Schedule(plan.Tasks)
			if err != nil {
				return fmt.Errorf("schedule computation failed: %w", err)
			}
			if schedule.HasCycle {
				return fmt.Errorf("plan %s: dependency cycle detected", plan.ID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "plan %s: %s strategy, %d tasks, %d waves, max %d iterations\n",
				plan.ID, plan.Metadata.RequirementStrategy, len(plan.Tasks), len(schedule.Waves), plan.MaxIterations)
			for _, wave := range schedule.Waves {
				fmt.Fprintf(cmd.OutOrStdout(), "  wave %d: %v\n", wave.Index, wave.TaskIDs())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "implementer", "creator or implementer")
	cmd.Flags().StringVar(&platform, "platform", "web", "web, desktop, mobile, or miniprogram")
	cmd.Flags().StringVar(&projectType, "project-type", "next-js", "project type for the dependency checklist")

	return cmd
}
