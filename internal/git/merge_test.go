package git_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/testhelpers"
)

func TestMerge(t *testing.T) {
	t.Run("fast-forward", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		svc := newService()
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "feature"))
		want, err := scene.Repo.GetRevision("feature")
		require.NoError(t, err)
		require.NoError(t, scene.Repo.CheckoutBranch("main"))

		requireSuccess(t, svc.Merge(testContext(t), scene.Dir, "feature", git.MergeOptions{}))
		got, err := scene.Repo.GetRevision("main")
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("fast-forward only refuses diverged branches", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		svc := newService()
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("feature", "feature"))
		require.NoError(t, scene.Repo.CheckoutBranch("main"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("main", "main"))

		res := svc.Merge(testContext(t), scene.Dir, "feature", git.MergeOptions{})
		require.False(t, res.Success)
		require.NotEqual(t, git.ErrorConflict, res.Error)
		require.False(t, svc.HasMergeConflict(testContext(t), scene.Dir))
	})

	t.Run("conflict can be detected and aborted", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		svc := newService()
		ctx := testContext(t)
		require.NoError(t, scene.Repo.CreateAndCheckoutBranch("feature"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("feature side", "1"))
		require.NoError(t, scene.Repo.CheckoutBranch("main"))
		require.NoError(t, scene.Repo.CreateChangeAndCommit("main side", "1"))
		before, err := scene.Repo.GetRevision("HEAD")
		require.NoError(t, err)

		res := svc.Merge(ctx, scene.Dir, "feature", git.MergeOptions{AllowMerge: true})
		require.False(t, res.Success)
		require.Equal(t, git.ErrorConflict, res.Error)
		require.True(t, svc.HasMergeConflict(ctx, scene.Dir))

		requireSuccess(t, svc.AbortMerge(ctx, scene.Dir))
		require.False(t, svc.HasMergeConflict(ctx, scene.Dir))
		after, err := scene.Repo.GetRevision("HEAD")
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("abort without a merge fails", func(t *testing.T) {
		scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
		res := newService().AbortMerge(testContext(t), scene.Dir)
		require.False(t, res.Success)
		require.NotEmpty(t, res.Error)
	})
}

func TestGitDir(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	dir, err := git.GitDir(scene.Dir)
	require.NoError(t, err)
	want, err := scene.Repo.RunGitCommandAndGetOutput("rev-parse", "--absolute-git-dir")
	require.NoError(t, err)
	require.Equal(t, want, dir)

	require.True(t, git.IsRepository(scene.Dir))
	require.False(t, git.IsRepository(t.TempDir()))
}
