// Package cmd wires the armada CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates the root cobra command for armada.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "armada",
		Short: "Dependency-aware autonomous ticket batch runner",
		Long: `Armada executes batches of interdependent tickets against one git
repository. It builds a dependency graph over the tickets, partitions it into
waves of independent work, runs each wave's tickets concurrently in isolated
worktrees through a work-agent, and merges completed branches into the base
branch between waves.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
