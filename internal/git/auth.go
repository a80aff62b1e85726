package git

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// TokenUser is the user name paired with a bearer token in an HTTPS URL.
const TokenUser = "x-access-token"

const redacted = "***"

var errNotHTTPS = errors.New("only https remotes can carry a token")

var credentialsInURL = regexp.MustCompile(`(?i)(https?://)[^/\s@]+@`)

// InjectToken returns rawURL with the token embedded as basic-auth
// credentials. Only https URLs are supported.
func InjectToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return "", errNotHTTPS
	}
	u.User = url.UserPassword(TokenUser, token)
	return u.String(), nil
}

// Redact removes token and any URL credentials from s.
func Redact(s, token string) string {
	if token != "" {
		s = strings.ReplaceAll(s, token, redacted)
		if escaped := url.QueryEscape(token); escaped != token {
			s = strings.ReplaceAll(s, escaped, redacted)
		}
	}
	return credentialsInURL.ReplaceAllString(s, "$1")
}

// repoLocks serialises token-scoped operations per working tree, since they
// mutate the shared origin URL.
type repoLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *repoLocks) lock(dir string) (unlock func()) {
	key := repoKey(dir)
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func repoKey(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// WithTokenAuth runs fn with the origin remote of dir temporarily rewritten to
// carry token. The original URL is restored however fn ends, including a
// panic. Without a token, an origin remote, or an https origin, fn runs
// unauthenticated. Calls on the same working tree are serialised.
func (s *Service) WithTokenAuth(ctx context.Context, dir, token string, fn func() error) (err error) {
	if token == "" {
		return fn()
	}

	unlock := s.locks.lock(dir)
	defer unlock()

	cleanURL, ok, err := s.GetRemoteURL(ctx, dir, DefaultRemote)
	if err != nil {
		return err
	}
	if !ok {
		return fn()
	}
	authURL, err := InjectToken(cleanURL, token)
	if err != nil {
		return fn()
	}

	if err := s.SetRemoteURL(ctx, dir, DefaultRemote, authURL); err != nil {
		return fmt.Errorf("set authenticated remote url: %s", Redact(err.Error(), token))
	}
	defer func() {
		// Restore even when ctx has been cancelled.
		restoreErr := s.SetRemoteURL(context.WithoutCancel(ctx), dir, DefaultRemote, cleanURL)
		if restoreErr != nil && err == nil {
			err = fmt.Errorf("restore remote url: %w", restoreErr)
		}
	}()

	return fn()
}

// tokenScoped runs the git command args inside WithTokenAuth and converts the
// outcome into a GitResult with credentials redacted.
func (s *Service) tokenScoped(ctx context.Context, dir, token string, args ...string) (Result, GitResult) {
	var res Result
	var runErr error
	err := s.WithTokenAuth(ctx, dir, token, func() error {
		res, runErr = s.runner.Run(ctx, dir, args...)
		return nil
	})
	switch {
	case err != nil:
		return res, failed(Redact(err.Error(), token))
	case runErr != nil:
		return res, failed(Redact(runErr.Error(), token))
	case !res.OK():
		return res, failed(Redact(failure(res, args), token))
	}
	out := succeeded(res)
	out.Output = Redact(out.Output, token)
	return res, out
}
