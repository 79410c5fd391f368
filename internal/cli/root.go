package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the foldermirror command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foldermirror",
		Short: "One-way periodic folder mirroring",
		Long: `foldermirror keeps a replica directory an exact copy of a source
directory. Passes run periodically; each one creates missing directories,
copies new and changed files and removes whatever the source no longer has.
Every change is written to a log file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewSyncCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
