// Package cli defines the revbridge command tree.
package cli

import (
	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/gitcmd"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "revbridge",
		Short: "revbridge connects a review backend and git for collaborative literature reviews",
		Long: `revbridge starts and supervises the review backend, talks to it over
JSON-RPC, and runs the git operations that keep a shared review repository in
sync with its collaborators.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/revbridge/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Show debug output")
	rootCmd.PersistentFlags().String("log-file", "", "Write the detailed log to this file")

	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newRPCCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(gitcmd.NewGitCmd())

	return rootCmd
}
