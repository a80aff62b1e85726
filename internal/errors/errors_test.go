package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	rberrors "revbridge.dev/revbridge/internal/errors"
)

func TestGitCommandErrorDetail(t *testing.T) {
	t.Run("prefers stderr", func(t *testing.T) {
		err := rberrors.NewGitCommandError("git", []string{"pull"}, 1, "out\n", "  fatal: no upstream\n", nil)
		require.Equal(t, "fatal: no upstream", err.Detail())
	})

	t.Run("falls back to stdout", func(t *testing.T) {
		err := rberrors.NewGitCommandError("git", []string{"merge", "x"}, 1, "CONFLICT (content)\n", " \n", nil)
		require.Equal(t, "CONFLICT (content)", err.Detail())
	})

	t.Run("then the cause", func(t *testing.T) {
		cause := errors.New("exec: not found")
		err := rberrors.NewGitCommandError("git", []string{"status"}, -1, "", "", cause)
		require.Equal(t, "exec: not found", err.Detail())
		require.ErrorIs(t, err, cause)
	})

	t.Run("then the exit code", func(t *testing.T) {
		err := rberrors.NewGitCommandError("git", []string{"fetch", "--prune"}, 128, "", "", nil)
		require.Equal(t, "git fetch --prune exited with code 128", err.Detail())
	})
}
