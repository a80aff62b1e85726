package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/testhelpers"
	"revbridge.dev/revbridge/testhelpers/scenario"
)

func TestMain(m *testing.M) {
	if os.Getenv(testhelpers.StubBackendEnv) == "1" {
		os.Exit(testhelpers.RunStubBackend())
	}
	os.Exit(m.Run())
}

func TestVersionCommand(t *testing.T) {
	s := scenario.NewScenario(t, nil)
	out := s.RunCli("version")
	require.Equal(t, "revbridge test (commit none, built unknown)\n", out)
}

func TestGitCommands(t *testing.T) {
	t.Run("branches", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.RemoteSceneSetup)
		s.CreateBranch("screening").Checkout("main")

		out, err := s.Git("branches")
		require.NoError(t, err, out)
		require.Contains(t, out, "* main [origin/main]")
		require.Contains(t, out, "  screening")
	})

	t.Run("branches as json", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.RemoteSceneSetup)

		out, err := s.Git("branches", "--json")
		require.NoError(t, err, out)
		var res git.GitBranchListResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.True(t, res.Success)
		require.Equal(t, "main", res.Current)
		require.Len(t, res.Branches, 1)
	})

	t.Run("checkout", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)
		s.CreateBranch("screening").Checkout("main")

		out, err := s.Git("checkout", "screening")
		require.NoError(t, err, out)
		require.Contains(t, out, "Checked out screening.")
		s.ExpectBranch("screening")
	})

	t.Run("branch completion uses the configured git", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)
		s.CreateBranch("screening").Checkout("main")
		complete := []string{"__complete", "git", "checkout", "--dir", s.Scene.Dir, ""}

		out := s.RunCli(complete...)
		require.Contains(t, out, "screening\n")
		require.Contains(t, out, ":4\n")

		t.Setenv("REVBRIDGE_GIT_BINARY", filepath.Join(t.TempDir(), "missing-git"))
		out = s.RunCli(complete...)
		require.NotContains(t, out, "screening")
		require.Contains(t, out, ":1\n")
	})

	t.Run("checkout of a missing branch fails", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)

		_, err := s.Git("checkout", "nope")
		require.EqualError(t, err, "branch nope does not exist")
		s.ExpectBranch("main")
	})

	t.Run("status", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)

		out, err := s.Git("status")
		require.NoError(t, err)
		require.Contains(t, out, "Working tree clean.")

		s.WithUncommittedChange("notes")
		out, err = s.Git("status")
		require.NoError(t, err)
		require.Contains(t, out, "0 uncommitted, 1 untracked.")
	})

	t.Run("log", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)
		s.CommitChange("prep", "prep records")

		out, err := s.Git("log", "-n", "1")
		require.NoError(t, err)
		require.Contains(t, out, "prep records")
		require.Contains(t, out, "(Test User, ")
	})

	t.Run("pull reports diverged branches", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.RemoteSceneSetup)
		other := s.Scene.Collaborator(t, "other")
		require.NoError(t, other.CreateChangeAndCommit("remote work", "remote"))
		require.NoError(t, other.PushBranch("origin", "main"))
		s.CommitChange("local", "local work")

		_, err := s.Git("pull")
		require.ErrorIs(t, err, rberrors.ErrDiverged)
		require.ErrorContains(t, err, "--allow-merge")

		out, err := s.Git("pull", "--allow-merge")
		require.NoError(t, err, out)
		testhelpers.ExpectCommits(t, s.Scene.Repo, "HEAD~1", []string{"local work"})
	})

	t.Run("push and fetch", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.RemoteSceneSetup)
		s.CreateBranch("screening").CommitChange("screen", "screen records")

		out, err := s.Git("push")
		require.NoError(t, err, out)

		other := s.Scene.Collaborator(t, "other")
		testhelpers.ExpectRemoteBranches(t, other, []string{"origin/main", "origin/screening"})
	})

	t.Run("merge conflict", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.BasicSceneSetup)
		s.CreateBranch("screening").CommitChange("1", "screening side").
			Checkout("main").CommitChange("1", "main side")

		_, err := s.Git("merge", "screening", "--allow-merge")
		require.ErrorContains(t, err, "conflicts")

		out, err := s.Git("conflict", "--json")
		require.NoError(t, err)
		require.JSONEq(t, `{"hasMergeConflict": true}`, out)

		_, err = s.Git("abort-merge")
		require.NoError(t, err)
		out, err = s.Git("conflict")
		require.NoError(t, err)
		require.Contains(t, out, "No merge in progress.")
	})

	t.Run("clone", func(t *testing.T) {
		s := scenario.NewScenario(t, testhelpers.RemoteSceneSetup)
		dest := filepath.Join(t.TempDir(), "copy")

		out, err := s.RunCliAndGetOutput("git", "clone", s.Scene.Remote, dest, "--no-auth")
		require.NoError(t, err, out)
		require.True(t, git.IsRepository(dest))
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status without a session", func(t *testing.T) {
		s := scenario.NewScenario(t, nil)
		out := s.RunCli("auth", "status")
		require.Contains(t, out, "Not signed in.")

		out = s.RunCli("auth", "status", "--json")
		require.Equal(t, "null\n", out)
	})

	t.Run("logout removes the session file", func(t *testing.T) {
		s := scenario.NewScenario(t, nil)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.SessionPath), 0o700))
		require.NoError(t, os.WriteFile(s.SessionPath, []byte("{}"), 0o600))

		out := s.RunCli("auth", "logout")
		require.Contains(t, out, "Signed out.")
		_, err := os.Stat(s.SessionPath)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("login without a client id", func(t *testing.T) {
		s := scenario.NewScenario(t, nil)
		t.Setenv("REVBRIDGE_AUTH_CLIENT_ID", "")
		err := s.RunExpectError("auth", "login")
		require.ErrorContains(t, err, "client id")
	})
}

func TestRPCCommands(t *testing.T) {
	withStub := func(t *testing.T) *scenario.Scenario {
		s := scenario.NewScenario(t, nil)
		t.Setenv(testhelpers.StubBackendEnv, "1")
		t.Setenv("REVBRIDGE_BACKEND_PATH", os.Args[0])
		t.Setenv("REVBRIDGE_BACKEND_PING_DELAY", "50ms")
		return s
	}

	t.Run("ping", func(t *testing.T) {
		s := withStub(t)
		out := s.RunCli("rpc", "ping")
		require.Contains(t, out, "Backend ready")
	})

	t.Run("call", func(t *testing.T) {
		s := withStub(t)
		out := s.RunCli("rpc", "call", "echo", "--params", `{"project":"demo"}`)
		require.JSONEq(t, `{"project":"demo"}`, out)
	})

	t.Run("remote error", func(t *testing.T) {
		s := withStub(t)
		err := s.RunExpectError("rpc", "call", "get_unknown")
		require.ErrorContains(t, err, "Method not found")
	})

	t.Run("invalid params", func(t *testing.T) {
		s := withStub(t)
		err := s.RunExpectError("rpc", "call", "echo", "--params", "{nope")
		require.ErrorContains(t, err, "not valid JSON")
	})

	t.Run("no backend configured", func(t *testing.T) {
		s := scenario.NewScenario(t, nil)
		t.Setenv("REVBRIDGE_BACKEND_PATH", "")
		err := s.RunExpectError("rpc", "ping")
		require.ErrorContains(t, err, "backend.path")
	})
}
