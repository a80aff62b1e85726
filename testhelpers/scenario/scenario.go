// Package scenario provides a high-level test scenario that combines a Scene
// with an in-process revbridge command line, giving integration tests a
// terse, chainable API.
package scenario

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/cli"
	"revbridge.dev/revbridge/testhelpers"
)

// Scenario is a scene plus an isolated revbridge environment.
type Scenario struct {
	T     *testing.T
	Scene *testhelpers.Scene
	// SessionPath is where auth commands keep the session.
	SessionPath string
}

// NewScenario creates a new Scenario with an optional setup function.
// NOTE: This function is NOT safe for parallel tests as it uses t.Setenv.
func NewScenario(t *testing.T, setup testhelpers.SceneSetup) *Scenario {
	t.Helper()

	home := t.TempDir()
	sessionPath := filepath.Join(home, "revbridge", "session.json")
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("REVBRIDGE_CONFIG", "")
	t.Setenv("REVBRIDGE_LOG_FILE", filepath.Join(home, "revbridge.log"))
	t.Setenv("REVBRIDGE_AUTH_SESSION_PATH", sessionPath)
	t.Setenv("GIT_CONFIG_GLOBAL", "/dev/null")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("DEBUG", "")

	return &Scenario{
		T:           t,
		Scene:       testhelpers.NewScene(t, setup),
		SessionPath: sessionPath,
	}
}

// WithInitialCommit creates an initial commit on the main branch.
func (s *Scenario) WithInitialCommit() *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CreateChangeAndCommit("initial", "init"))
	return s
}

// WithUncommittedChange creates an untracked file in the repository.
func (s *Scenario) WithUncommittedChange(name string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CreateChange("unstaged content", name, true))
	return s
}

// RunGit runs a git command in the scenario's repository.
func (s *Scenario) RunGit(args ...string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.RunGitCommand(args...))
	return s
}

// Checkout checks out a branch.
func (s *Scenario) Checkout(branch string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CheckoutBranch(branch))
	return s
}

// CreateBranch creates and checks out a new branch.
func (s *Scenario) CreateBranch(name string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CreateAndCheckoutBranch(name))
	return s
}

// CommitChange creates a file change and commits it.
func (s *Scenario) CommitChange(name, message string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CreateChangeAndCommit(message, name))
	return s
}

// RunCliAndGetOutput executes revbridge in-process and returns its output.
func (s *Scenario) RunCliAndGetOutput(args ...string) (string, error) {
	s.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var out bytes.Buffer
	cmd := cli.NewRootCmd("test", "none", "unknown")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// RunCli executes revbridge and requires it to succeed.
func (s *Scenario) RunCli(args ...string) string {
	s.T.Helper()
	out, err := s.RunCliAndGetOutput(args...)
	require.NoError(s.T, err, "CLI command failed: revbridge %v\nOutput: %s", args, out)
	return out
}

// RunExpectError executes revbridge and requires it to fail.
func (s *Scenario) RunExpectError(args ...string) error {
	s.T.Helper()
	out, err := s.RunCliAndGetOutput(args...)
	require.Error(s.T, err, "expected CLI command to fail: revbridge %v\nOutput: %s", args, out)
	return err
}

// Git runs `revbridge git <sub>` against the scene's repository without
// stored credentials.
func (s *Scenario) Git(sub string, args ...string) (string, error) {
	s.T.Helper()
	full := append([]string{"git", sub}, args...)
	full = append(full, "--dir", s.Scene.Dir, "--no-auth")
	return s.RunCliAndGetOutput(full...)
}

// ExpectBranch asserts that the current branch is as expected.
func (s *Scenario) ExpectBranch(expected string) *Scenario {
	s.T.Helper()
	actual, err := s.Scene.Repo.CurrentBranchName()
	require.NoError(s.T, err)
	require.Equal(s.T, expected, actual)
	return s
}
