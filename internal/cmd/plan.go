package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/armada/internal/dag"
	"github.com/harrison/armada/internal/logger"
)

// NewPlanCommand creates the plan command: compute and print the wave plan
// without executing anything.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [plan-file]",
		Short: "Validate a ticket batch and print its wave plan",
		Long: `Validate a ticket batch without executing it: parse the dependency spec,
check for unknown prerequisites and cycles, and print the computed waves.

Examples:
  armada plan --tickets 197,198,199,200,201,202 --deps "197:200,198:197"
  armada plan sprint-42.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: planCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .armada/config.yaml)")
	cmd.Flags().String("tickets", "", "Comma-separated ticket identifiers")
	cmd.Flags().String("deps", "", "Dependency spec: child:parent pairs, comma-separated")

	return cmd
}

func planCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	tickets, deps, err := resolveInputs(cmd, args, cfg)
	if err != nil {
		return err
	}

	nodes, err := dag.BuildGraph(tickets, deps)
	if err != nil {
		return err
	}
	waves, err := dag.TopologicalWaves(nodes)
	if err != nil {
		return err
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)
	log.LogPlan(waves, len(tickets))
	fmt.Fprintln(os.Stdout, "Plan is valid.")
	return nil
}
