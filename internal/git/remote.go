package git

import (
	"context"
	"strings"
)

// DefaultRemote is the remote every sync operation talks to.
const DefaultRemote = "origin"

// GetRemoteURL returns the URL of remote. ok is false when the remote does
// not exist.
func (s *Service) GetRemoteURL(ctx context.Context, dir, remote string) (remoteURL string, ok bool, err error) {
	res, err := s.runner.Run(ctx, dir, "remote", "get-url", remote)
	if err != nil {
		return "", false, err
	}
	if !res.OK() {
		// git exits 2 for an unknown remote.
		if res.ExitCode == 2 || strings.Contains(res.Stderr, "No such remote") {
			return "", false, nil
		}
		return "", false, commandError(res, "remote", "get-url", remote)
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// SetRemoteURL points remote at remoteURL.
func (s *Service) SetRemoteURL(ctx context.Context, dir, remote, remoteURL string) error {
	_, err := output(ctx, s.runner, dir, "remote", "set-url", remote, remoteURL)
	return err
}

// AddRemote adds a new remote named remote.
func (s *Service) AddRemote(ctx context.Context, dir, remote, remoteURL string) error {
	_, err := output(ctx, s.runner, dir, "remote", "add", remote, remoteURL)
	return err
}
