package gitcmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/runtime"
)

func newFetchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch from origin and prune deleted branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				token := ctx.GitToken(cmd.Context(), f.noAuth)
				return f.report(cmd, ctx, ctx.Git.Fetch(cmd.Context(), dir, token), "Fetched from origin.")
			})
		},
	}
}

func newPullCmd(f *flags) *cobra.Command {
	var allowMerge bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull the current branch from its upstream",
		Long: `Pull the current branch from its upstream. Only fast-forwards are allowed
unless --allow-merge is given; a refused pull reports that the branches diverged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				token := ctx.GitToken(cmd.Context(), f.noAuth)
				res := ctx.Git.Pull(cmd.Context(), dir, token, git.PullOptions{AllowMerge: allowMerge})
				return f.report(cmd, ctx, res, "Pulled.")
			})
		},
	}
	cmd.Flags().BoolVar(&allowMerge, "allow-merge", false, "Create a merge commit when the branches diverged")
	return cmd
}

func newPushCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:               "push [branch]",
		Short:             "Push a branch to origin and set its upstream",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: CompleteBranches,
		RunE: func(cmd *cobra.Command, args []string) error {
			branch := ""
			if len(args) > 0 {
				branch = args[0]
			}
			return f.run(cmd, func(ctx *runtime.Context, dir string) error {
				token := ctx.GitToken(cmd.Context(), f.noAuth)
				res := ctx.Git.Push(cmd.Context(), dir, token, branch)
				return f.report(cmd, ctx, res, "Pushed to origin.")
			})
		},
	}
}

func newCloneCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> <destination>",
		Short: "Clone a review repository",
		Long: `Clone a review repository. The stored token is used for https remotes but
is never left in the clone's origin URL.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			return f.run(cmd, func(ctx *runtime.Context, _ string) error {
				token := ctx.GitToken(cmd.Context(), f.noAuth)
				res := ctx.Git.Clone(cmd.Context(), args[0], dest, token)
				return f.report(cmd, ctx, res, fmt.Sprintf("Cloned into %s.", dest))
			})
		},
	}
}
