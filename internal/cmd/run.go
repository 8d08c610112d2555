package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/armada/internal/agent"
	"github.com/harrison/armada/internal/config"
	"github.com/harrison/armada/internal/dag"
	"github.com/harrison/armada/internal/filelock"
	"github.com/harrison/armada/internal/git"
	"github.com/harrison/armada/internal/history"
	"github.com/harrison/armada/internal/logger"
	"github.com/harrison/armada/internal/merge"
	"github.com/harrison/armada/internal/models"
	"github.com/harrison/armada/internal/orchestrator"
	"github.com/harrison/armada/internal/parser"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [plan-file]",
		Short: "Execute a batch of tickets in dependency order",
		Long: `Execute a batch of tickets. Tickets and dependencies come either from a
markdown plan file or from the --tickets/--deps flags.

The dependency spec is comma-separated child:parent pairs: "197:200,198:197"
means 197 depends on 200 and 198 depends on 197.

Configuration is loaded from .armada/config.yaml if present. Plan-file
frontmatter overrides the config file; CLI flags override both.

Examples:
  armada run --tickets 197,198,199,200 --deps "197:200,198:197"
  armada run sprint-42.md --max-parallel 5
  armada run --tickets 12,13 --dry-run
  armada run sprint-42.md --test-command "go test ./..."`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .armada/config.yaml)")
	cmd.Flags().String("tickets", "", "Comma-separated ticket identifiers")
	cmd.Flags().String("deps", "", "Dependency spec: child:parent pairs, comma-separated")
	cmd.Flags().String("repo", "", "Trunk repository directory")
	cmd.Flags().String("remote", "", "Git remote to merge through")
	cmd.Flags().String("base-branch", "", "Integration branch")
	cmd.Flags().String("branch-prefix", "", "Prefix for result branches")
	cmd.Flags().Int("max-parallel", -1, "Maximum concurrent tickets per wave (0 = wave size)")
	cmd.Flags().String("agent", "", "Work-agent binary")
	cmd.Flags().String("agent-timeout", "", "Per-ticket agent timeout (e.g. 45m)")
	cmd.Flags().String("test-command", "", "Post-merge validation command")
	cmd.Flags().String("log-level", "", "Log verbosity (debug, info, warn, error)")
	cmd.Flags().Bool("dry-run", false, "Print planned actions without executing")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	tickets, deps, err := resolveInputs(cmd, args, cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	var runner git.Runner = git.NewExecRunner()
	if cfg.DryRun {
		runner = &git.DryRunner{Logf: log.Infof}
	}

	trunk := git.NewTrunk(runner, cfg.RepoDir, cfg.GitRemote, cfg.BaseBranch)
	worktrees := git.NewWorktreeManager(runner, cfg.RepoDir, cfg.WorktreeDir, cfg.GitRemote, cfg.BaseBranch)

	invoker := agent.NewInvoker(worktrees, cfg.BranchPrefix)
	invoker.AgentPath = cfg.AgentPath
	invoker.Timeout = cfg.AgentTimeout
	invoker.DryRun = cfg.DryRun
	invoker.Logger = log

	stateDir := filepath.Join(repoOrCwd(cfg), ".armada")
	lock := filelock.New(filepath.Join(stateDir, "merge.lock"))
	queue := merge.NewQueue(trunk, merge.NewExecShellRunner(), lock, log, cfg.DryRun)

	orch := orchestrator.New(invoker, queue, log, cfg.MaxParallel, cfg.TestCommand)
	run, err := orch.Run(cmd.Context(), tickets, deps)
	if err != nil {
		return err
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory && !cfg.DryRun {
		if err := saveHistory(cfg, run); err != nil {
			log.Warnf("could not record run history: %v", err)
		}
	}

	if err := writeLastRun(stateDir, run); err != nil {
		log.Warnf("could not write last-run state: %v", err)
	}

	counts := run.Counts()
	if run.Failed() {
		return fmt.Errorf("%d of %d ticket(s) did not complete", counts.Failed+counts.Skipped, counts.Total)
	}
	if counts.Blocked > 0 {
		log.Warnf("%d ticket(s) blocked on operator input", counts.Blocked)
	}
	return nil
}

// loadMergedConfig loads the config file and layers CLI flag values on top.
func loadMergedConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if v, _ := cmd.Flags().GetString("repo"); v != "" {
		cfg.RepoDir = v
	}
	if v, _ := cmd.Flags().GetString("remote"); v != "" {
		cfg.GitRemote = v
	}
	if v, _ := cmd.Flags().GetString("base-branch"); v != "" {
		cfg.BaseBranch = v
	}
	if v, _ := cmd.Flags().GetString("branch-prefix"); v != "" {
		cfg.BranchPrefix = v
	}
	if cmd.Flags().Changed("max-parallel") {
		v, _ := cmd.Flags().GetInt("max-parallel")
		cfg.MaxParallel = v
	}
	if v, _ := cmd.Flags().GetString("agent"); v != "" {
		cfg.AgentPath = v
	}
	if v, _ := cmd.Flags().GetString("agent-timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --agent-timeout %q: %w", v, err)
		}
		cfg.AgentTimeout = d
	}
	if v, _ := cmd.Flags().GetString("test-command"); v != "" {
		cfg.TestCommand = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		cfg.DryRun = true
	}

	return cfg, nil
}

// resolveInputs determines the ticket list and dependency map from a plan
// file or from flags. Plan-file frontmatter overrides config values that were
// not set by flags.
func resolveInputs(cmd *cobra.Command, args []string, cfg *config.Config) ([]int, map[int][]int, error) {
	ticketsFlag, _ := cmd.Flags().GetString("tickets")
	depsFlag, _ := cmd.Flags().GetString("deps")

	if len(args) == 1 {
		if ticketsFlag != "" || depsFlag != "" {
			return nil, nil, fmt.Errorf("cannot combine a plan file with --tickets/--deps")
		}

		plan, err := parser.NewMarkdownParser().ParseFile(args[0])
		if err != nil {
			return nil, nil, err
		}

		ov := plan.Overrides
		if ov.BaseBranch != "" && !cmd.Flags().Changed("base-branch") {
			cfg.BaseBranch = ov.BaseBranch
		}
		if ov.GitRemote != "" && !cmd.Flags().Changed("remote") {
			cfg.GitRemote = ov.GitRemote
		}
		if ov.MaxParallel != nil && !cmd.Flags().Changed("max-parallel") {
			cfg.MaxParallel = *ov.MaxParallel
		}
		if ov.TestCommand != "" && !cmd.Flags().Changed("test-command") {
			cfg.TestCommand = ov.TestCommand
		}

		return plan.Tickets, plan.Deps, nil
	}

	if ticketsFlag == "" {
		return nil, nil, fmt.Errorf("either a plan file or --tickets is required")
	}

	tickets, err := parseTicketList(ticketsFlag)
	if err != nil {
		return nil, nil, err
	}
	deps, err := dag.ParseDeps(depsFlag)
	if err != nil {
		return nil, nil, err
	}
	return tickets, deps, nil
}

// parseTicketList parses a comma-separated ticket id list.
func parseTicketList(s string) ([]int, error) {
	var tickets []int
	seen := make(map[int]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimPrefix(strings.TrimSpace(tok), "#")
		if tok == "" {
			continue
		}
		t, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket %q: %w", tok, err)
		}
		if seen[t] {
			return nil, fmt.Errorf("ticket #%d listed more than once", t)
		}
		seen[t] = true
		tickets = append(tickets, t)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("no tickets given")
	}
	return tickets, nil
}

func repoOrCwd(cfg *config.Config) string {
	if cfg.RepoDir != "" {
		return cfg.RepoDir
	}
	return "."
}

func saveHistory(cfg *config.Config, run *models.RunResult) error {
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(run)
}

// writeLastRun persists the run result as json for tooling that inspects the
// most recent run.
func writeLastRun(stateDir string, run *models.RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return filelock.AtomicWrite(filepath.Join(stateDir, "last-run.json"), data)
}
