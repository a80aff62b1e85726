package git

import (
	"context"
	"os"
	"strings"
)

// Service runs the synchronisation operations against working trees. Every
// operation returns a result record; command failures never surface as Go
// errors.
type Service struct {
	runner Executor
	locks  repoLocks
}

// NewService creates a Service that shells out through runner.
func NewService(runner Executor) *Service {
	return &Service{runner: runner}
}

// divergedMarkers are the messages git prints when a fast-forward-only pull
// or merge cannot proceed because the histories have split.
var divergedMarkers = []string{
	"not possible to fast-forward",
	"diverging branches",
	"have diverged",
	"divergent branches",
}

func isDiverged(res Result) bool {
	text := strings.ToLower(res.Stderr + "\n" + res.Stdout)
	for _, marker := range divergedMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Fetch updates remote-tracking refs from origin, pruning deleted branches.
func (s *Service) Fetch(ctx context.Context, dir, token string) GitResult {
	_, out := s.tokenScoped(ctx, dir, token, "fetch", "--prune", DefaultRemote)
	return out
}

// PullOptions configures Pull.
type PullOptions struct {
	// AllowMerge lets git create a merge commit instead of requiring a
	// fast-forward.
	AllowMerge bool
}

// Pull integrates the upstream of the current branch. By default it only
// fast-forwards; divergence is reported as ErrorDiverged.
func (s *Service) Pull(ctx context.Context, dir, token string, opts PullOptions) GitResult {
	args := []string{"pull", "--ff-only"}
	if opts.AllowMerge {
		args = []string{"pull", "--no-rebase", "--no-edit"}
	}
	res, out := s.tokenScoped(ctx, dir, token, args...)
	if !out.Success && !opts.AllowMerge && isDiverged(res) {
		out.Error = ErrorDiverged
	}
	return out
}

// Push publishes branch to origin and sets it as upstream. An empty branch
// pushes the current one.
func (s *Service) Push(ctx context.Context, dir, token, branch string) GitResult {
	if branch == "" {
		current, err := s.CurrentBranch(ctx, dir)
		if err != nil {
			return failed(Redact(err.Error(), token))
		}
		branch = current
	}
	_, out := s.tokenScoped(ctx, dir, token, "push", "-u", DefaultRemote, branch)
	return out
}

// Clone clones remoteURL into dest. A token is used for the transfer only:
// the new working tree's origin is reset to the clean URL before Clone
// returns, and dest is removed if that reset fails.
func (s *Service) Clone(ctx context.Context, remoteURL, dest, token string) GitResult {
	cloneURL := remoteURL
	if token != "" {
		if authURL, err := InjectToken(remoteURL, token); err == nil {
			cloneURL = authURL
		}
	}

	args := []string{"clone", cloneURL, dest}
	res, err := s.runner.Run(ctx, "", args...)
	if err != nil {
		return failed(Redact(err.Error(), token))
	}
	if !res.OK() {
		return failed(Redact(failure(res, args), token))
	}

	if cloneURL != remoteURL {
		if err := s.SetRemoteURL(context.WithoutCancel(ctx), dest, DefaultRemote, remoteURL); err != nil {
			_ = os.RemoveAll(dest)
			return failed(Redact(err.Error(), token))
		}
	}
	out := succeeded(res)
	out.Output = Redact(strings.TrimSpace(res.Stdout+res.Stderr), token)
	return out
}
