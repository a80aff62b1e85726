package git

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	rberrors "revbridge.dev/revbridge/internal/errors"
)

const (
	localPrefix  = "refs/heads/"
	remotePrefix = "refs/remotes/"
)

// branchFormat yields refname, upstream, tracking annotation and committer
// date separated by tabs.
const branchFormat = "--format=%(refname)%09%(upstream:short)%09%(upstream:track)%09%(committerdate:iso8601)"

var (
	aheadPattern  = regexp.MustCompile(`ahead (\d+)`)
	behindPattern = regexp.MustCompile(`behind (\d+)`)
)

// CurrentBranch returns the checked out branch, or "HEAD" when detached.
func (s *Service) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return output(ctx, s.runner, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// ListBranches returns local branches followed by remote-tracking branches
// that have no local counterpart, one entry per name.
func (s *Service) ListBranches(ctx context.Context, dir string) GitBranchListResult {
	args := []string{"branch", "-a", branchFormat}
	res, err := s.runner.Run(ctx, dir, args...)
	if err != nil {
		return GitBranchListResult{Error: err.Error(), Branches: []BranchInfo{}}
	}
	if !res.OK() {
		return GitBranchListResult{Error: failure(res, args), Branches: []BranchInfo{}}
	}

	// An unborn HEAD has no current branch; that is not a failure.
	current, _ := s.CurrentBranch(ctx, dir)

	var locals, remotes []BranchInfo
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		info, ok := parseBranchLine(line)
		if !ok {
			continue
		}
		if info.Remote {
			remotes = append(remotes, info)
			continue
		}
		info.Current = info.Name == current
		locals = append(locals, info)
	}

	localNames := make(map[string]bool, len(locals))
	for _, b := range locals {
		localNames[b.Name] = true
	}
	branches := locals
	for _, b := range remotes {
		if localNames[b.Name] {
			continue
		}
		branches = append(branches, b)
	}

	return GitBranchListResult{
		Success:  true,
		Current:  current,
		Branches: dedupeBranches(branches),
	}
}

// parseBranchLine parses one line of branchFormat output. ok is false for
// lines that are not branches, such as origin/HEAD or a detached HEAD.
func parseBranchLine(line string) (BranchInfo, bool) {
	fields := strings.Split(line, "\t")
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	ref, upstream, track, date := fields[0], fields[1], fields[2], fields[3]

	var info BranchInfo
	switch {
	case strings.HasPrefix(ref, localPrefix):
		info.Name = strings.TrimPrefix(ref, localPrefix)
	case strings.HasPrefix(ref, remotePrefix):
		short := strings.TrimPrefix(ref, remotePrefix)
		_, name, found := strings.Cut(short, "/")
		if !found || name == "HEAD" {
			return BranchInfo{}, false
		}
		info.Name = name
		info.Remote = true
	default:
		return BranchInfo{}, false
	}

	info.Upstream = upstream
	info.Ahead, info.Behind = parseTrack(track)
	info.LastCommitDate = normalizeDate(date)
	return info, true
}

// parseTrack reads "[ahead 2, behind 1]" style annotations. A missing count
// is zero.
func parseTrack(track string) (ahead, behind int) {
	if m := aheadPattern.FindStringSubmatch(track); m != nil {
		ahead, _ = strconv.Atoi(m[1])
	}
	if m := behindPattern.FindStringSubmatch(track); m != nil {
		behind, _ = strconv.Atoi(m[1])
	}
	return ahead, behind
}

func normalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if t, err := time.Parse("2006-01-02 15:04:05 -0700", date); err == nil {
		return t.Format(time.RFC3339)
	}
	return date
}

// dedupeBranches keeps the first entry for every name.
func dedupeBranches(branches []BranchInfo) []BranchInfo {
	seen := make(map[string]bool, len(branches))
	out := make([]BranchInfo, 0, len(branches))
	for _, b := range branches {
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		out = append(out, b)
	}
	return out
}

// Checkout switches to branch. When no local branch exists it is created to
// track origin/<branch>; when neither exists the result carries a
// branch-not-found message.
func (s *Service) Checkout(ctx context.Context, dir, branch string) GitResult {
	if s.refExists(ctx, dir, localPrefix+branch) {
		return s.run(ctx, dir, "checkout", branch)
	}
	remoteRef := DefaultRemote + "/" + branch
	if !s.refExists(ctx, dir, remotePrefix+remoteRef) {
		return failed(rberrors.NewBranchNotFoundError(branch).Error())
	}
	return s.run(ctx, dir, "checkout", "-b", branch, "--track", remoteRef)
}

func (s *Service) refExists(ctx context.Context, dir, ref string) bool {
	res, err := s.runner.Run(ctx, dir, "rev-parse", "--verify", "--quiet", ref)
	return err == nil && res.OK()
}

// run executes args and maps the outcome onto a GitResult.
func (s *Service) run(ctx context.Context, dir string, args ...string) GitResult {
	res, err := s.runner.Run(ctx, dir, args...)
	if err != nil {
		return failed(err.Error())
	}
	if !res.OK() {
		return failed(failure(res, args))
	}
	return succeeded(res)
}
