package git

import (
	"context"
	"os"
	"path/filepath"
)

// MergeOptions configures Merge.
type MergeOptions struct {
	// AllowMerge permits a merge commit; otherwise only fast-forwards succeed.
	AllowMerge bool
}

// Merge merges branch into the current branch. A merge that stops with
// conflicts reports ErrorConflict and leaves the tree for AbortMerge.
func (s *Service) Merge(ctx context.Context, dir, branch string, opts MergeOptions) GitResult {
	args := []string{"merge", "--ff-only", branch}
	if opts.AllowMerge {
		args = []string{"merge", "--no-edit", branch}
	}
	res, err := s.runner.Run(ctx, dir, args...)
	if err != nil {
		return failed(err.Error())
	}
	if res.OK() {
		return succeeded(res)
	}
	if s.HasMergeConflict(ctx, dir) {
		return GitResult{Error: ErrorConflict, Output: failure(res, args)}
	}
	return failed(failure(res, args))
}

// AbortMerge abandons an in-progress merge.
func (s *Service) AbortMerge(ctx context.Context, dir string) GitResult {
	return s.run(ctx, dir, "merge", "--abort")
}

// HasMergeConflict reports whether a merge is in progress, that is whether
// MERGE_HEAD exists in the repository's git directory.
func (s *Service) HasMergeConflict(ctx context.Context, dir string) bool {
	gitDir, err := GitDir(dir)
	if err != nil {
		// Fall back to git itself for layouts go-git cannot open.
		gitDir, err = output(ctx, s.runner, dir, "rev-parse", "--absolute-git-dir")
		if err != nil {
			return false
		}
	}
	_, err = os.Stat(filepath.Join(gitDir, "MERGE_HEAD"))
	return err == nil
}
