package testhelpers

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Must is a generic helper function that panics if err is not nil,
// otherwise returns the value. Useful in test setup code where errors
// are not expected.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func listRefs(t *testing.T, repo *GitRepo, prefix string) []string {
	t.Helper()
	out, err := repo.RunGitCommandAndGetOutput("for-each-ref", prefix, "--format=%(refname:short)")
	require.NoError(t, err, "Failed to list refs")

	refs := []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasSuffix(line, "/HEAD") {
			refs = append(refs, line)
		}
	}
	sort.Strings(refs)
	return refs
}

// ExpectBranches asserts that the repository has exactly the expected local branches.
func ExpectBranches(t *testing.T, repo *GitRepo, expected []string) {
	t.Helper()
	want := append([]string(nil), expected...)
	sort.Strings(want)
	require.Equal(t, want, listRefs(t, repo, "refs/heads/"), "Branches do not match")
}

// ExpectRemoteBranches asserts the remote-tracking branches, e.g. "origin/main".
func ExpectRemoteBranches(t *testing.T, repo *GitRepo, expected []string) {
	t.Helper()
	want := append([]string(nil), expected...)
	sort.Strings(want)
	require.Equal(t, want, listRefs(t, repo, "refs/remotes/"), "Remote branches do not match")
}

// ExpectCommits asserts the most recent commit messages on branch, newest
// first. Only the first len(expected) commits are compared.
func ExpectCommits(t *testing.T, repo *GitRepo, branch string, expected []string) {
	t.Helper()
	out, err := repo.RunGitCommandAndGetOutput("log", "--format=%s", branch)
	require.NoError(t, err, "Failed to list commits")

	messages := []string{}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			messages = append(messages, line)
		}
	}
	if len(messages) < len(expected) {
		require.Fail(t, "Not enough commits", "Expected %d commits, got %d", len(expected), len(messages))
		return
	}
	require.Equal(t, expected, messages[:len(expected)], "Commits do not match")
}
