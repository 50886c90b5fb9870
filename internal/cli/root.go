// Package cli implements the orchestrator's command-line surface, grounded
// on the teacher's internal/cmd: a thin root command that wires
// subcommands, with each subcommand's logic kept in its own file.
package cli

import "github.com/spf13/cobra"

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand builds the root cobra command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "conductorrun",
		Short:   "Self-repairing multi-agent orchestration runtime",
		Version: Version,
		Long: `conductorrun drives the Three-Layer Orchestrator: it plans a run from a
user message, schedules the plan's tasks into dependency-ordered waves,
executes each wave under the Execution Kernel, scores the result with the
Reflection Controller, and replans or repairs until the run is accepted
or a budget is exhausted.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newReplayCommand())

	return root
}
