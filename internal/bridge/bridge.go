// Package bridge supervises the backend child process and exposes its stdio
// as a JSON-RPC channel.
//
// A Bridge owns at most one process at a time. Start spawns the executable,
// confirms readiness with a retried ping, and only then accepts calls. The
// process's stdin and stdout belong to the rpc.Client; stderr lines are
// forwarded as log events and an exit, requested or not, as a close event.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/events"
	"revbridge.dev/revbridge/internal/git"
	"revbridge.dev/revbridge/internal/rpc"
)

// PingMethod is the no-op call used to confirm the backend is ready.
const PingMethod = "ping"

// Defaults for Options fields left at their zero value.
const (
	DefaultPingRetries  = 20
	DefaultPingDelay    = 500 * time.Millisecond
	DefaultStartTimeout = 30 * time.Second
	DefaultStopGrace    = 2 * time.Second
	DefaultReapTimeout  = 5 * time.Second
)

// Options configures the backend process and its handshake.
type Options struct {
	// Path is the backend executable.
	Path string
	Args []string
	Dir  string

	// ToolchainDir points at a bundled git toolchain whose bin directory is
	// put first on the child's PATH.
	ToolchainDir string
	// Env entries override the inherited environment.
	Env []string

	PingRetries  int
	PingDelay    time.Duration
	StartTimeout time.Duration
	// CallTimeout is the default per-call deadline; zero means rpc.DefaultCallTimeout.
	CallTimeout time.Duration
	// StopGrace is how long Stop waits after closing stdin before killing.
	StopGrace time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingRetries == 0 {
		o.PingRetries = DefaultPingRetries
	}
	if o.PingDelay == 0 {
		o.PingDelay = DefaultPingDelay
	}
	if o.StartTimeout == 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = rpc.DefaultCallTimeout
	}
	if o.StopGrace == 0 {
		o.StopGrace = DefaultStopGrace
	}
	return o
}

// Validate checks the handshake bounds: the overall start timeout must be
// strictly larger than retries × delay.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.Path == "" {
		return errors.New("backend path is not configured")
	}
	if o.PingRetries < 1 {
		return fmt.Errorf("ping retries must be at least 1, got %d", o.PingRetries)
	}
	if o.PingDelay < 0 || o.StartTimeout < 0 {
		return errors.New("ping delay and start timeout must be positive")
	}
	if budget := time.Duration(o.PingRetries) * o.PingDelay; o.StartTimeout <= budget {
		return fmt.Errorf("start timeout %s must exceed ping retries × delay (%s)", o.StartTimeout, budget)
	}
	return nil
}

// LogEvent is one line the backend wrote to stderr.
type LogEvent struct {
	PID  int
	Line string
	Time time.Time
}

// CloseEvent reports that the backend process has been reaped.
type CloseEvent struct {
	PID      int
	ExitCode int
	Err      error
	// Requested is true when the exit followed Stop or a failed handshake.
	Requested bool
}

// Bridge is the application's single handle on the backend process.
type Bridge struct {
	opts Options

	mu      sync.Mutex
	session *session

	logs   events.Bus[LogEvent]
	errs   events.Bus[error]
	closes events.Bus[CloseEvent]
}

type session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	client *rpc.Client

	ready    bool
	stopping bool
	done     chan struct{}
}

// New creates a stopped Bridge.
func New(opts Options) *Bridge {
	return &Bridge{opts: opts.withDefaults()}
}

// OnLog subscribes to backend stderr lines.
func (b *Bridge) OnLog(fn func(LogEvent)) (unsubscribe func()) {
	return b.logs.Subscribe(fn)
}

// OnError subscribes to spawn failures and protocol diagnostics.
func (b *Bridge) OnError(fn func(error)) (unsubscribe func()) {
	return b.errs.Subscribe(fn)
}

// OnClose subscribes to process termination.
func (b *Bridge) OnClose(fn func(CloseEvent)) (unsubscribe func()) {
	return b.closes.Subscribe(fn)
}

// Start spawns the backend and returns once it has answered a ping. On any
// failure the process, if spawned, is killed before Start returns.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.opts.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.session != nil {
		b.mu.Unlock()
		return rberrors.ErrAlreadyStarted
	}
	s, err := b.spawn()
	if err != nil {
		b.mu.Unlock()
		b.errs.Publish(err)
		return err
	}
	b.session = s
	b.mu.Unlock()

	if err := b.handshake(ctx, s); err != nil {
		b.stopSession(s, 0)
		return err
	}

	b.mu.Lock()
	s.ready = true
	b.mu.Unlock()
	return nil
}

func (b *Bridge) spawn() (*session, error) {
	cmd := exec.Command(b.opts.Path, b.opts.Args...)
	cmd.Dir = b.opts.Dir
	base := os.Environ()
	cmd.Env = git.MergeEnv(base, git.ToolchainEnv(b.opts.ToolchainDir, base), b.opts.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, rberrors.NewSpawnError(b.opts.Path, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, rberrors.NewSpawnError(b.opts.Path, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, rberrors.NewSpawnError(b.opts.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, rberrors.NewSpawnError(b.opts.Path, err)
	}

	s := &session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		client: rpc.NewClient(stdin, rpc.WithDefaultTimeout(b.opts.CallTimeout)),
		done:   make(chan struct{}),
	}
	s.client.OnDiagnostic(b.errs.Publish)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		if err := s.client.Serve(stdout); err != nil && !errors.Is(err, os.ErrClosed) {
			b.errs.Publish(fmt.Errorf("read backend stdout: %w", err))
		}
	}()
	go func() {
		defer readers.Done()
		b.forwardStderr(cmd.Process.Pid, stderr)
	}()
	go b.reap(s, &readers)

	return s, nil
}

func (b *Bridge) forwardStderr(pid int, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.logs.Publish(LogEvent{PID: pid, Line: scanner.Text(), Time: time.Now()})
	}
}

// reap waits for the readers to drain, then for the process, and tears the
// session down. It is the only place a session is cleared.
func (b *Bridge) reap(s *session, readers *sync.WaitGroup) {
	readers.Wait()
	waitErr := s.cmd.Wait()

	exitCode := -1
	if s.cmd.ProcessState != nil {
		exitCode = s.cmd.ProcessState.ExitCode()
	}

	b.mu.Lock()
	requested := s.stopping
	if b.session == s {
		b.session = nil
	}
	b.mu.Unlock()

	if requested {
		s.client.Close(rberrors.ErrStopped)
	} else {
		s.client.Close(rberrors.ErrProcessExited)
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		waitErr = nil
	}
	b.closes.Publish(CloseEvent{
		PID:       s.cmd.Process.Pid,
		ExitCode:  exitCode,
		Err:       waitErr,
		Requested: requested,
	})
	close(s.done)
}

// handshake pings until the backend answers. Attempts start PingDelay apart;
// each one may take at most PingDelay.
func (b *Bridge) handshake(ctx context.Context, s *session) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.StartTimeout)
	defer cancel()

	start := time.Now()
	var lastErr error
	attempt := 0
	for attempt < b.opts.PingRetries {
		attempt++
		next := time.Now().Add(b.opts.PingDelay)

		err := s.client.CallInto(ctx, PingMethod, nil, nil, rpc.WithTimeout(b.opts.PingDelay))
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, rberrors.ErrProcessExited) || errors.Is(err, rberrors.ErrStopped) {
			break
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if attempt == b.opts.PingRetries {
			break
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			return &rberrors.HandshakeError{Attempts: attempt, Elapsed: time.Since(start), Err: lastErr}
		}
	}
	return &rberrors.HandshakeError{Attempts: attempt, Elapsed: time.Since(start), Err: lastErr}
}

// Call invokes method on the running backend.
func (b *Bridge) Call(ctx context.Context, method string, params any, opts ...rpc.CallOption) ([]byte, error) {
	s, err := b.readySession()
	if err != nil {
		return nil, err
	}
	return s.client.Call(ctx, method, params, opts...)
}

// CallInto invokes method and decodes its result into out.
func (b *Bridge) CallInto(ctx context.Context, method string, params, out any, opts ...rpc.CallOption) error {
	s, err := b.readySession()
	if err != nil {
		return err
	}
	return s.client.CallInto(ctx, method, params, out, opts...)
}

func (b *Bridge) readySession() (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil || !b.session.ready {
		return nil, rberrors.ErrNotStarted
	}
	return b.session, nil
}

// Stop rejects all pending calls, terminates the backend and waits for it to
// be reaped. Stopping a bridge that is not running is a no-op.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return nil
	}
	b.stopSession(s, b.opts.StopGrace)
	return nil
}

// stopSession closes stdin and gives the backend grace to exit on EOF
// before killing it.
func (b *Bridge) stopSession(s *session, grace time.Duration) {
	b.mu.Lock()
	s.stopping = true
	b.mu.Unlock()

	s.client.Close(rberrors.ErrStopped)
	_ = s.stdin.Close()

	if grace > 0 {
		timer := time.NewTimer(grace)
		select {
		case <-s.done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	_ = s.cmd.Process.Kill()

	timer := time.NewTimer(DefaultReapTimeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		// A grandchild can hold the pipes open after the kill; closing our
		// ends unblocks the readers so the process can be reaped.
		_ = s.stdout.Close()
		_ = s.stderr.Close()
		<-s.done
	}
}

// Running reports whether a backend process is alive and past its handshake.
func (b *Bridge) Running() bool {
	_, err := b.readySession()
	return err == nil
}

// PID returns the backend's process id, or 0 when not running.
func (b *Bridge) PID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return 0
	}
	return b.session.cmd.Process.Pid
}

// Stats exposes the transport counters of the current session.
func (b *Bridge) Stats() (rpc.Stats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return rpc.Stats{}, false
	}
	return b.session.client.Stats(), true
}
