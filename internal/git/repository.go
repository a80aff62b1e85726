package git

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Repository wraps a go-git repository
type Repository struct {
	*git.Repository
	path string
}

// OpenRepository opens the git repository containing path, following .git
// files of linked worktrees.
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{
		Repository: repo,
		path:       absPath,
	}, nil
}

// GitDir returns the directory holding this working tree's state files
// (HEAD, MERGE_HEAD, index). For a linked worktree it is the per-worktree
// directory, not the common one.
func (r *Repository) GitDir() (string, error) {
	storage, ok := r.Storer.(*filesystem.Storage)
	if !ok {
		return "", errors.New("repository is not stored on disk")
	}
	return storage.Filesystem().Root(), nil
}

// GitDir opens the repository containing path and returns its git directory.
func GitDir(path string) (string, error) {
	repo, err := OpenRepository(path)
	if err != nil {
		return "", err
	}
	return repo.GitDir()
}

// IsRepository reports whether path is inside a git working tree.
func IsRepository(path string) bool {
	_, err := OpenRepository(path)
	return err == nil
}
