package runtime

import (
	"context"
	"errors"
	"log/slog"

	"revbridge.dev/revbridge/internal/auth"
	"revbridge.dev/revbridge/internal/bridge"
	"revbridge.dev/revbridge/internal/config"
	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/output"
)

// Context provides access to the services and output for commands
type Context struct {
	Config config.Config
	Splog  *output.Splog
	Bridge *bridge.Bridge
	Git    *git.Service
	Auth   *auth.Authenticator

	unsubscribe []func()
}

// NewContext builds every service from cfg and forwards their events to splog.
func NewContext(cfg config.Config, splog *output.Splog) *Context {
	c := &Context{
		Config: cfg,
		Splog:  splog,
		Bridge: bridge.New(cfg.BridgeOptions()),
		Git:    NewGitService(cfg),
		Auth:   auth.New(cfg.AuthOptions()),
	}
	c.unsubscribe = append(c.unsubscribe,
		c.Bridge.OnLog(c.onBackendLog),
		c.Bridge.OnError(c.onBackendError),
		c.Bridge.OnClose(c.onBackendClose),
		c.Auth.OnStatus(c.onAuthStatus),
	)
	return c
}

// NewGitService builds the git service for the configured binary and toolchain.
func NewGitService(cfg config.Config) *git.Service {
	return git.NewService(git.NewCommandRunner(cfg.Git.Binary, cfg.Git.ToolchainDir))
}

func (c *Context) onBackendLog(ev bridge.LogEvent) {
	c.Splog.Log(slog.LevelDebug, c.Splog.Styles().Muted(ev.Line), "source", "backend", "pid", ev.PID)
}

func (c *Context) onBackendError(err error) {
	var decodeErr *rberrors.ProtocolDecodeError
	if errors.As(err, &decodeErr) {
		c.Splog.Log(slog.LevelDebug, "ignored backend output: "+err.Error(), "source", "backend")
		return
	}
	c.Splog.Log(slog.LevelWarn, c.Splog.Styles().Warning("backend: "+err.Error()), "source", "backend")
}

func (c *Context) onBackendClose(ev bridge.CloseEvent) {
	if ev.Requested {
		c.Splog.Log(slog.LevelDebug, "backend stopped", "pid", ev.PID, "code", ev.ExitCode)
		return
	}
	args := []any{"pid", ev.PID, "code", ev.ExitCode}
	if ev.Err != nil {
		args = append(args, "err", ev.Err)
	}
	c.Splog.Log(slog.LevelWarn, c.Splog.Styles().Warning("backend exited unexpectedly"), args...)
}

func (c *Context) onAuthStatus(st auth.DeviceFlowStatus) {
	switch st.Status {
	case auth.StatusAwaitingCode:
		c.Splog.Page(c.Splog.Styles().UserCode(st.UserCode, st.VerificationURI) + "\n")
	case auth.StatusPolling:
		c.Splog.Debug("Waiting for authorization...")
	case auth.StatusSuccess:
		c.Splog.Info(c.Splog.Styles().Success("Authorized."))
	case auth.StatusExpired:
		c.Splog.Warn("The device code expired before it was authorized.")
	case auth.StatusError:
		c.Splog.Error("Authorization failed: %s", st.Error)
	}
}

// StartBridge validates the backend settings and starts the process.
func (c *Context) StartBridge(ctx context.Context) error {
	if err := c.Config.ValidateBackend(); err != nil {
		return err
	}
	c.Splog.Debug("Starting backend %s", c.Config.Backend.Path)
	return c.Bridge.Start(ctx)
}

// GitToken returns the stored session's token for remote git operations,
// or "" to run them unauthenticated.
func (c *Context) GitToken(ctx context.Context, noAuth bool) string {
	if noAuth {
		return ""
	}
	token, err := c.Auth.Token(ctx)
	if err != nil {
		c.Splog.Debug("Running git without credentials: %v", err)
		return ""
	}
	return token
}

// Close stops the backend and detaches the event forwarders.
func (c *Context) Close() error {
	err := c.Bridge.Stop()
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
	return err
}
