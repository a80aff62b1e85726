// Package auth signs the user in with the OAuth device authorization grant
// and keeps the resulting access token in an encrypted session file.
//
// A flow moves through awaiting_code, polling and then exactly one terminal
// status: success, error or expired. Statuses are published on a bus rather
// than stored. At most one flow runs at a time; starting another, or logging
// out, cancels the one in progress.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"

	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/events"
	rbgithub "revbridge.dev/revbridge/internal/github"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultMaxWait        = 15 * time.Minute
	DefaultSlowDownMargin = 5 * time.Second
	DefaultPollInterval   = 5 * time.Second
)

// Status is the state of a device flow.
type Status string

const (
	StatusAwaitingCode Status = "awaiting_code"
	StatusPolling      Status = "polling"
	StatusSuccess      Status = "success"
	StatusError        Status = "error"
	StatusExpired      Status = "expired"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusExpired
}

// DeviceFlowStatus is one status notification.
type DeviceFlowStatus struct {
	Status          Status `json:"status"`
	UserCode        string `json:"userCode,omitempty"`
	VerificationURI string `json:"verificationUri,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Options configures an Authenticator.
type Options struct {
	ClientID      string
	Scopes        []string
	DeviceCodeURL string
	TokenURL      string
	// APIBaseURL is the REST API root used for the profile; empty means github.com.
	APIBaseURL string

	SessionPath string
	// KeyPath defaults to SessionPath + ".key".
	KeyPath string

	// MaxWait bounds a flow even if the provider's code lives longer.
	MaxWait        time.Duration
	SlowDownMargin time.Duration

	HTTPClient *http.Client
	// OpenBrowser shows the verification page; nil uses the system browser.
	OpenBrowser func(url string) error
	// Now and Sleep replace the clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Authenticator runs device flows and serves the stored session.
type Authenticator struct {
	opts   Options
	oauth  *oauth2.Config
	store  *Store
	status events.Bus[DeviceFlowStatus]

	mu         sync.Mutex
	cancelFlow context.CancelFunc
	flowID     uint64
}

// New creates an Authenticator.
func New(opts Options) *Authenticator {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.SlowDownMargin <= 0 {
		opts.SlowDownMargin = DefaultSlowDownMargin
	}
	if opts.DeviceCodeURL == "" {
		opts.DeviceCodeURL = githubendpoint.Endpoint.DeviceAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = githubendpoint.Endpoint.TokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = OpenBrowser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Authenticator{
		opts: opts,
		oauth: &oauth2.Config{
			ClientID: opts.ClientID,
			Scopes:   opts.Scopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: opts.DeviceCodeURL,
				TokenURL:      opts.TokenURL,
			},
		},
		store: NewStore(opts.SessionPath, opts.KeyPath),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnStatus subscribes to device-flow status changes.
func (a *Authenticator) OnStatus(fn func(DeviceFlowStatus)) (unsubscribe func()) {
	return a.status.Subscribe(fn)
}

// StartDeviceFlow cancels any flow in progress, runs a new one to completion
// and returns the new session. A flow superseded by another call or by
// Logout returns context.Canceled without a terminal status.
func (a *Authenticator) StartDeviceFlow(ctx context.Context) (*Session, error) {
	ctx, id := a.beginFlow(ctx)
	defer a.endFlow(id)

	if a.opts.ClientID == "" {
		return nil, a.fail(ctx, errors.New("no OAuth client id configured"))
	}

	code, err := a.oauth.DeviceAuth(a.httpContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(ctx, fmt.Errorf("failed to request device code: %w", err))
	}
	a.publish(ctx, DeviceFlowStatus{Status: StatusAwaitingCode, UserCode: code.UserCode, VerificationURI: code.VerificationURI})

	verifyURI := code.VerificationURI
	if code.VerificationURIComplete != "" {
		verifyURI = code.VerificationURIComplete
	}
	// The code is also in the status, so a browser that fails to open is
	// not fatal.
	_ = a.opts.OpenBrowser(verifyURI)
	a.publish(ctx, DeviceFlowStatus{Status: StatusPolling, UserCode: code.UserCode, VerificationURI: code.VerificationURI})

	token, err := a.poll(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := a.fetchProfile(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(ctx, fmt.Errorf("failed to fetch user profile: %w", err))
	}

	session := Session{User: *user, AuthenticatedAt: a.opts.Now().UTC()}
	if err := a.save(ctx, id, token, session); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(ctx, err)
	}
	a.publish(ctx, DeviceFlowStatus{Status: StatusSuccess})
	return &session, nil
}

func (a *Authenticator) beginFlow(ctx context.Context) (context.Context, uint64) {
	flowCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFlow != nil {
		a.cancelFlow()
	}
	a.flowID++
	a.cancelFlow = cancel
	return flowCtx, a.flowID
}

func (a *Authenticator) endFlow(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.flowID == id && a.cancelFlow != nil {
		a.cancelFlow()
		a.cancelFlow = nil
	}
}

// save writes the session only while flow id is still the current one, so a
// Logout or a newer flow that cancelled it cannot be undone by a late write.
func (a *Authenticator) save(ctx context.Context, id uint64, token string, session Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.flowID != id || a.cancelFlow == nil {
		return context.Canceled
	}
	return a.store.Save(token, session)
}

// cancel aborts the flow in progress, if any.
func (a *Authenticator) cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFlow != nil {
		a.cancelFlow()
		a.cancelFlow = nil
	}
}

// publish drops notifications from a cancelled flow.
func (a *Authenticator) publish(ctx context.Context, st DeviceFlowStatus) {
	if ctx.Err() != nil {
		return
	}
	a.status.Publish(st)
}

func (a *Authenticator) fail(ctx context.Context, err error) error {
	a.publish(ctx, DeviceFlowStatus{Status: StatusError, Error: err.Error()})
	return err
}

func (a *Authenticator) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.opts.HTTPClient)
}

// poll asks the token endpoint for a token until a terminal answer or the
// deadline. Cancellation is checked before every wait and every request.
func (a *Authenticator) poll(ctx context.Context, code *oauth2.DeviceAuthResponse) (string, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	wait := a.opts.MaxWait
	if !code.Expiry.IsZero() {
		if left := time.Until(code.Expiry); left < wait {
			wait = left
		}
	}
	deadline := a.opts.Now().Add(wait)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := a.opts.Sleep(ctx, interval); err != nil {
			return "", err
		}
		if !a.opts.Now().Before(deadline) {
			a.publish(ctx, DeviceFlowStatus{Status: StatusExpired, Error: rberrors.ErrDeviceCodeExpired.Error()})
			return "", rberrors.ErrDeviceCodeExpired
		}

		resp, err := a.requestToken(ctx, code.DeviceCode)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// Transient: try again at the same interval.
			continue
		}

		switch resp.Error {
		case "":
			return resp.AccessToken, nil
		case "authorization_pending":
		case "slow_down":
			interval = nextInterval(interval, time.Duration(resp.Interval)*time.Second, a.opts.SlowDownMargin)
		case "expired_token":
			perr := &rberrors.ProviderError{Code: resp.Error, Description: resp.ErrorDescription}
			a.publish(ctx, DeviceFlowStatus{Status: StatusExpired, Error: perr.Error()})
			return "", perr
		default:
			perr := &rberrors.ProviderError{Code: resp.Error, Description: resp.ErrorDescription}
			return "", a.fail(ctx, perr)
		}
	}
}

// nextInterval applies a slow_down: the provider's suggestion plus margin,
// and never less than the current interval plus margin.
func nextInterval(current, suggested, margin time.Duration) time.Duration {
	next := suggested + margin
	if next <= current {
		next = current + margin
	}
	return next
}

// Logout cancels any flow in progress and deletes the stored session.
func (a *Authenticator) Logout() error {
	a.cancel()
	return a.store.Delete()
}

// GetSession returns the stored session after confirming with the provider
// that its token still works. Any failure deletes the stored record and
// yields nil.
func (a *Authenticator) GetSession(ctx context.Context) *Session {
	session, _ := a.load(ctx)
	return session
}

// Token returns the access token of the validated session, or ErrNoSession.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	session, token := a.load(ctx)
	if session == nil {
		return "", rberrors.ErrNoSession
	}
	return token, nil
}

func (a *Authenticator) load(ctx context.Context) (*Session, string) {
	token, session, err := a.store.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = a.store.Delete()
		}
		return nil, ""
	}
	user, err := a.fetchProfile(ctx, token)
	if err != nil {
		_ = a.store.Delete()
		return nil, ""
	}
	session.User = *user
	return session, token
}

func (a *Authenticator) fetchProfile(ctx context.Context, token string) (*User, error) {
	client, err := rbgithub.NewClient(ctx, a.opts.HTTPClient, token, a.opts.APIBaseURL)
	if err != nil {
		return nil, err
	}
	profile, err := client.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return &User{
		Login:     profile.Login,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		Email:     profile.Email,
	}, nil
}
