package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
)

// Scene is a working tree plus, optionally, a bare "origin" remote and a
// second clone of it, all under one temporary directory.
type Scene struct {
	Dir  string
	Repo *GitRepo
	// Remote is the bare repository path once WithRemote has run.
	Remote string
}

// SceneSetup is a function type for setting up a scene.
type SceneSetup func(*Scene) error

// NewScene creates a new test scene with a temporary directory and Git repository.
// It automatically handles cleanup using t.Cleanup().
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()

	root, err := os.MkdirTemp("", "revbridge-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		if os.Getenv("DEBUG") == "" {
			_ = os.RemoveAll(root)
		}
	})

	dir := filepath.Join(root, "work")
	repo, err := NewGitRepo(dir)
	if err != nil {
		t.Fatalf("Failed to create Git repo: %v", err)
	}

	scene := &Scene{Dir: dir, Repo: repo}
	if setup != nil {
		if err := setup(scene); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}
	return scene
}

// Collaborator clones the scene's remote into a sibling directory.
func (s *Scene) Collaborator(t *testing.T, name string) *GitRepo {
	t.Helper()
	if s.Remote == "" {
		t.Fatal("scene has no remote")
	}
	repo, err := CloneTo(s.Remote, filepath.Join(filepath.Dir(s.Dir), name))
	if err != nil {
		t.Fatalf("Failed to clone collaborator: %v", err)
	}
	return repo
}

// BasicSceneSetup is a setup function that creates a basic scene with a single commit.
func BasicSceneSetup(scene *Scene) error {
	return scene.Repo.CreateChangeAndCommit("1", "1")
}

// RemoteSceneSetup creates one commit on main and pushes it to a new bare
// origin.
func RemoteSceneSetup(scene *Scene) error {
	if err := BasicSceneSetup(scene); err != nil {
		return err
	}
	remote, err := scene.Repo.CreateBareRemote("origin")
	if err != nil {
		return err
	}
	scene.Remote = remote
	return scene.Repo.PushBranch("origin", "main")
}
