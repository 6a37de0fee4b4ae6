package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	workspacePath string
	verbose       bool
	jsonOutput    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "specforge",
		Short: "SpecForge - crash-safe document generation pipeline",
		Long: `SpecForge runs a fixed five-step document pipeline (PRD extraction,
design analysis, validation, doc generation, assembly) over LLM providers,
with durable checkpoints so an interrupted run resumes exactly where it
stopped.

Features:
  - Atomic, schema-validated session state on the filesystem
  - Per-step checkpoints; completed steps never re-run on resume
  - Provider retry with backoff and automatic fallback
  - Wall-clock run deadline that pauses instead of losing work
  - Single-writer workspace lock with stale-lock recovery`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}
