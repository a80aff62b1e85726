// Package gitcmd provides the CLI commands that run git against a review
// repository.
package gitcmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"revbridge.dev/revbridge/internal/cli/common"
	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/runtime"
)

// flags shared by every git subcommand
type flags struct {
	dir    string
	noAuth bool
	asJSON bool
}

// NewGitCmd creates the git command group.
func NewGitCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Run git operations on a review repository",
		Long: `Run git operations on a review repository.

Remote operations use the token of the signed-in session, if any, for https
remotes. Results are printed as text, or as the raw result record with --json.`,
	}
	cmd.PersistentFlags().StringVarP(&f.dir, "dir", "C", ".", "Repository directory")
	cmd.PersistentFlags().BoolVar(&f.noAuth, "no-auth", false, "Do not use the stored session token")
	cmd.PersistentFlags().BoolVar(&f.asJSON, "json", false, "Print the result record as JSON")

	cmd.AddCommand(
		newFetchCmd(f),
		newPullCmd(f),
		newPushCmd(f),
		newCloneCmd(f),
		newBranchesCmd(f),
		newCheckoutCmd(f),
		newMergeCmd(f),
		newAbortMergeCmd(f),
		newConflictCmd(f),
		newLogCmd(f),
		newStatusCmd(f),
	)
	return cmd
}

// repoDir returns the absolute --dir.
func (f *flags) repoDir() (string, error) {
	return filepath.Abs(f.dir)
}

// run resolves --dir and hands the command a runtime context.
func (f *flags) run(cmd *cobra.Command, fn func(ctx *runtime.Context, dir string) error) error {
	dir, err := f.repoDir()
	if err != nil {
		return err
	}
	return common.Run(cmd, func(ctx *runtime.Context) error {
		return fn(ctx, dir)
	})
}

// report prints a GitResult and turns a failure into the command's error.
func (f *flags) report(cmd *cobra.Command, ctx *runtime.Context, res git.GitResult, success string) error {
	if f.asJSON {
		if err := common.PrintJSON(cmd, res); err != nil {
			return err
		}
	} else if res.Success {
		ctx.Splog.Info(ctx.Splog.Styles().Success(success))
		if out := res.Output; out != "" {
			ctx.Splog.Debug("%s", out)
		}
	}
	return failure(res.Success, res.Error)
}

func failure(ok bool, msg string) error {
	if ok {
		return nil
	}
	switch msg {
	case git.ErrorDiverged:
		return fmt.Errorf("%w; pull with --allow-merge to merge them", rberrors.ErrDiverged)
	case git.ErrorConflict:
		return errors.New("merge stopped on conflicts; resolve them or run `revbridge git abort-merge`")
	}
	return errors.New(msg)
}

// CompleteBranches is a helper for cobra.ValidArgsFunction that returns the
// branches of the repository in the current directory.
func CompleteBranches(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	dir, err := os.Getwd()
	if f := cmd.Flag("dir"); f != nil && f.Value.String() != "" {
		dir, err = filepath.Abs(f.Value.String())
	}
	if err != nil || !git.IsRepository(dir) {
		return nil, cobra.ShellCompDirectiveError
	}
	cfg, err := common.LoadConfig(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	res := runtime.NewGitService(cfg).ListBranches(cmd.Context(), dir)
	if !res.Success {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(res.Branches))
	for _, b := range res.Branches {
		names = append(names, b.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
