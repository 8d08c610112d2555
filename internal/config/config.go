// Package config loads armada configuration from yaml with CLI flag
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the config file location relative to the working
// directory.
const DefaultConfigPath = ".armada/config.yaml"

// HistoryConfig configures the run-history store.
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file
	DBPath string `yaml:"db_path"`
}

// Config holds all armada settings.
type Config struct {
	// RepoDir is the trunk repository directory (empty = current dir)
	RepoDir string `yaml:"repo_dir"`

	// WorktreeDir is where per-ticket worktrees are created
	// (empty = "<repo>-worktrees" next to the repository)
	WorktreeDir string `yaml:"worktree_dir"`

	// GitRemote is the remote tickets merge through
	GitRemote string `yaml:"git_remote"`

	// BaseBranch is the integration branch
	BaseBranch string `yaml:"base_branch"`

	// BranchPrefix prefixes result branches: "<prefix>/ticket-<id>"
	BranchPrefix string `yaml:"branch_prefix"`

	// MaxParallel caps concurrent tickets within a wave (0 = wave size)
	MaxParallel int `yaml:"max_parallel"`

	// AgentPath is the work-agent binary
	AgentPath string `yaml:"agent_path"`

	// AgentTimeout bounds a single agent invocation (0 = unbounded)
	AgentTimeout time.Duration `yaml:"agent_timeout"`

	// TestCommand is the post-merge validation command (empty = skip)
	TestCommand string `yaml:"test_command"`

	// LogLevel sets console verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// DryRun plans and prints without running git or the agent
	DryRun bool `yaml:"dry_run"`

	// History configures run-history recording
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GitRemote:    "origin",
		BaseBranch:   "main",
		BranchPrefix: "armada",
		MaxParallel:  3,
		AgentPath:    "claude",
		AgentTimeout: time.Hour,
		LogLevel:     "info",
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".armada/history.db",
		},
	}
}

// LoadConfig loads configuration from path. A missing file returns defaults
// without error; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Durations arrive as strings ("45m"), so unmarshal through a shadow
	// struct before merging.
	type yamlConfig struct {
		RepoDir      string        `yaml:"repo_dir"`
		WorktreeDir  string        `yaml:"worktree_dir"`
		GitRemote    string        `yaml:"git_remote"`
		BaseBranch   string        `yaml:"base_branch"`
		BranchPrefix string        `yaml:"branch_prefix"`
		MaxParallel  *int          `yaml:"max_parallel"`
		AgentPath    string        `yaml:"agent_path"`
		AgentTimeout string        `yaml:"agent_timeout"`
		TestCommand  string        `yaml:"test_command"`
		LogLevel     string        `yaml:"log_level"`
		DryRun       *bool         `yaml:"dry_run"`
		History      HistoryConfig `yaml:"history"`
	}

	yc := yamlConfig{History: cfg.History}
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if yc.RepoDir != "" {
		cfg.RepoDir = yc.RepoDir
	}
	if yc.WorktreeDir != "" {
		cfg.WorktreeDir = yc.WorktreeDir
	}
	if yc.GitRemote != "" {
		cfg.GitRemote = yc.GitRemote
	}
	if yc.BaseBranch != "" {
		cfg.BaseBranch = yc.BaseBranch
	}
	if yc.BranchPrefix != "" {
		cfg.BranchPrefix = yc.BranchPrefix
	}
	if yc.MaxParallel != nil {
		cfg.MaxParallel = *yc.MaxParallel
	}
	if yc.AgentPath != "" {
		cfg.AgentPath = yc.AgentPath
	}
	if yc.AgentTimeout != "" {
		d, err := time.ParseDuration(yc.AgentTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid agent_timeout %q: %w", yc.AgentTimeout, err)
		}
		cfg.AgentTimeout = d
	}
	if yc.TestCommand != "" {
		cfg.TestCommand = yc.TestCommand
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.DryRun != nil {
		cfg.DryRun = *yc.DryRun
	}
	cfg.History = yc.History

	return cfg, nil
}

// LoadConfigFromDir loads configuration from dir's default config path.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DefaultConfigPath))
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.GitRemote == "" {
		return fmt.Errorf("git_remote must not be empty")
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("base_branch must not be empty")
	}
	if c.BranchPrefix == "" {
		return fmt.Errorf("branch_prefix must not be empty")
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must not be negative")
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path is required when history is enabled")
	}
	return nil
}
