package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/common"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/runtime"
)

func newMergeCmd(f *flags) *cobra.Command {
	var allowMerge bool

	cmd := &cobra.Command{
		Use:               "merge <branch>",
		Short:             "Merge a branch into the current one",
		Long:              `Merge a branch into the current one. Only fast-forwards are allowed unless --allow-merge is given.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: CompleteBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				res := ctx.Git.Merge(cmd.Context(), dir, args[0], git.MergeOptions{AllowMerge: allowMerge})
				return f.report(cmd, ctx, res, fmt.Sprintf("Merged %s.", args[0]))
			})
		},
	}
	cmd.Flags().BoolVar(&allowMerge, "allow-merge", false, "Create a merge commit when a fast-forward is impossible")
	return cmd
}

func newAbortMergeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "abort-merge",
		Short: "Abort the merge in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				return f.report(cmd, ctx, ctx.Git.AbortMerge(cmd.Context(), dir), "Merge aborted.")
			})
		},
	}
}

func newConflictCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "conflict",
		Short: "Report whether a merge is in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				conflict := ctx.Git.HasMergeConflict(cmd.Context(), dir)
				if f.asJSON {
					return common.PrintJSON(cmd, map[string]bool{"hasMergeConflict": conflict})
				}
				if conflict {
					ctx.Splog.Warn("A merge is in progress.")
				} else {
					ctx.Splog.Info("No merge in progress.")
				}
				return nil
			})
		},
	}
}
