package git

import (
	"context"
	"strconv"
	"strings"
)

// DefaultLogCount bounds Log when the caller passes a non-positive count.
const DefaultLogCount = 50

const logFormat = "--format=%H%x09%h%x09%s%x09%an%x09%aI"

// Log returns up to count commits reachable from HEAD, most recent first. A
// repository without commits yields an empty, successful result.
func (s *Service) Log(ctx context.Context, dir string, count int) GitLogResult {
	if count <= 0 {
		count = DefaultLogCount
	}
	if !s.refExists(ctx, dir, "HEAD") {
		if IsRepository(dir) {
			return GitLogResult{Success: true, Commits: []CommitInfo{}}
		}
	}

	args := []string{"log", "--max-count=" + strconv.Itoa(count), logFormat}
	res, err := s.runner.Run(ctx, dir, args...)
	if err != nil {
		return GitLogResult{Error: err.Error(), Commits: []CommitInfo{}}
	}
	if !res.OK() {
		return GitLogResult{Error: failure(res, args), Commits: []CommitInfo{}}
	}
	return GitLogResult{Success: true, Commits: parseLog(res.Stdout)}
}

func parseLog(out string) []CommitInfo {
	commits := []CommitInfo{}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		n := len(fields)
		commits = append(commits, CommitInfo{
			Hash:      fields[0],
			ShortHash: fields[1],
			// A subject may itself contain tabs.
			Message: strings.Join(fields[2:n-2], "\t"),
			Author:  fields[n-2],
			Date:    fields[n-1],
		})
	}
	return commits
}
