package git_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/testhelpers"
)

func newService() *git.Service {
	return git.NewService(&git.CommandRunner{Env: testhelpers.IsolatedGitEnv})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func requireSuccess(t *testing.T, res git.GitResult) {
	t.Helper()
	require.True(t, res.Success, "git operation failed: %s", res.Error)
}
