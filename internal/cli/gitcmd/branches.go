package gitcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/common"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/runtime"
)

func newBranchesCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:     "branches",
		Aliases: []string{"br"},
		Short:   "List local branches and remote branches without a local copy",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				res := ctx.Git.ListBranches(cmd.Context(), dir)
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
				for _, br := range res.Branches {
					b.WriteString(formatBranch(br))
					b.WriteString("\n")
				}
				ctx.Splog.Page(b.String())
				return nil
			})
		},
	}
}

func formatBranch(br git.BranchInfo) string {
	marker := "  "
	if br.Current {
		marker = "* "
	}
	name := br.Name
	if br.Remote {
		name = git.DefaultRemote + "/" + br.Name
	}
	line := marker + name
	if br.Upstream != "" {
		line += fmt.Sprintf(" [%s", br.Upstream)
		if br.Ahead > 0 {
			line += fmt.Sprintf(" ahead %d", br.Ahead)
		}
		if br.Behind > 0 {
			line += fmt.Sprintf(" behind %d", br.Behind)
		}
		line += "]"
	}
	return line
}

func newCheckoutCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:               "checkout <branch>",
		Aliases:           []string{"co"},
		Short:             "Switch to a branch, creating a tracking branch for a remote-only one",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: CompleteBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				res := ctx.Git.Checkout(cmd.Context(), dir, args[0])
				return f.report(cmd, ctx, res, fmt.Sprintf("Checked out %s.", args[0]))
			})
		},
	}
}
