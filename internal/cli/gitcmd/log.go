package gitcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/common"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/runtime"
)

func newLogCmd(f *flags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent commits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				res := ctx.Git.Log(cmd.Context(), dir, count)
				if f.asJSON {
					if err := common.PrintJSON(cmd, res); err != nil {
						return err
					}
					return failure(res.Success, res.Error)
				}
				if !res.Success {
					return failure(false, res.Error)
				}
				var b strings.Builder
				for _, c := range res.Commits {
					fmt.Fprintf(&b, "%s %s (%s, %s)\n", c.ShortHash, c.Message, c.Author, c.Date)
				}
				ctx.Splog.Page(b.String())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", git.DefaultLogCount, "Number of commits")
	return cmd
}

func newStatusCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count uncommitted and untracked paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				res := ctx.Git.DirtyState(cmd.Context(), dir)
				if f.asJSON {
					if err := common.PrintJSON(cmd, res); err != nil {
						return err
					}
					return failure(res.Success, res.Error)
				}
				if !res.Success {
					return failure(false, res.Error)
				}
				if !res.IsDirty {
					ctx.Splog.Info("Working tree clean.")
					return nil
				}
				ctx.Splog.Info("%d uncommitted, %d untracked.", res.UncommittedCount, res.UntrackedCount)
				return nil
			})
		},
	}
}
