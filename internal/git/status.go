package git

import (
	"context"
	"strings"
)

// DirtyState counts uncommitted and untracked paths from porcelain status.
func (s *Service) DirtyState(ctx context.Context, dir string) GitDirtyState {
	args := []string{"status", "--porcelain"}
	res, err := s.runner.Run(ctx, dir, args...)
	if err != nil {
		return GitDirtyState{Error: err.Error()}
	}
	if !res.OK() {
		return GitDirtyState{Error: failure(res, args)}
	}

	state := GitDirtyState{Success: true}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			state.UntrackedCount++
		} else {
			state.UncommittedCount++
		}
	}
	state.IsDirty = state.UncommittedCount+state.UntrackedCount > 0
	return state
}
