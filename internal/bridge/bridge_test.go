package bridge_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/bridge"
	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/rpc"
	"revbridge.dev/revbridge/testhelpers"
)

func TestMain(m *testing.M) {
	if os.Getenv(testhelpers.StubBackendEnv) == "1" {
		os.Exit(testhelpers.RunStubBackend())
	}
	os.Exit(m.Run())
}

func stubOptions(env ...string) bridge.Options {
	return bridge.Options{
		Path:         os.Args[0],
		Env:          append([]string{testhelpers.StubBackendEnv + "=1"}, env...),
		PingRetries:  20,
		PingDelay:    50 * time.Millisecond,
		StartTimeout: 5 * time.Second,
		StopGrace:    time.Second,
	}
}

func startStub(t *testing.T, opts bridge.Options) *bridge.Bridge {
	t.Helper()
	b := bridge.New(opts)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func closeEvents(b *bridge.Bridge) <-chan bridge.CloseEvent {
	ch := make(chan bridge.CloseEvent, 4)
	b.OnClose(func(ev bridge.CloseEvent) { ch <- ev })
	return ch
}

func waitClose(t *testing.T, ch <-chan bridge.CloseEvent) bridge.CloseEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no close event")
		return bridge.CloseEvent{}
	}
}

func TestOptionsValidate(t *testing.T) {
	base := bridge.Options{Path: "backend", PingRetries: 10, PingDelay: 100 * time.Millisecond}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, bridge.Options{Path: "backend"}.Validate())
	})

	t.Run("start timeout must exceed retries times delay", func(t *testing.T) {
		opts := base
		opts.StartTimeout = time.Second
		require.ErrorContains(t, opts.Validate(), "must exceed")

		opts.StartTimeout = time.Second + time.Millisecond
		require.NoError(t, opts.Validate())
	})

	t.Run("missing path", func(t *testing.T) {
		require.Error(t, bridge.Options{}.Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		opts := base
		opts.PingRetries = -1
		opts.StartTimeout = time.Minute
		require.Error(t, opts.Validate())
	})
}

func TestStartHandshake(t *testing.T) {
	t.Run("two failed pings 100ms apart resolve after about 200ms", func(t *testing.T) {
		opts := stubOptions("STUB_FAIL_PINGS=2")
		opts.PingRetries = 5
		opts.PingDelay = 100 * time.Millisecond
		opts.StartTimeout = 2 * time.Second

		b := bridge.New(opts)
		t.Cleanup(func() { _ = b.Stop() })

		start := time.Now()
		require.NoError(t, b.Start(context.Background()))
		elapsed := time.Since(start)

		require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
		require.Less(t, elapsed, 1500*time.Millisecond)
		require.True(t, b.Running())
		require.NotZero(t, b.PID())
	})

	t.Run("exhausted retries reject and kill the process", func(t *testing.T) {
		opts := stubOptions("STUB_SILENT_PINGS=1000")
		opts.PingRetries = 3
		opts.PingDelay = 50 * time.Millisecond
		opts.StartTimeout = time.Second

		b := bridge.New(opts)
		closed := closeEvents(b)

		err := b.Start(context.Background())
		var hsErr *rberrors.HandshakeError
		require.ErrorAs(t, err, &hsErr)
		require.ErrorIs(t, err, rberrors.ErrHandshakeFailed)
		require.Equal(t, 3, hsErr.Attempts)

		ev := waitClose(t, closed)
		require.True(t, ev.Requested)
		require.False(t, b.Running())
		require.Zero(t, b.PID())
	})

	t.Run("caller deadline rejects the start", func(t *testing.T) {
		opts := stubOptions("STUB_SILENT_PINGS=1000")
		b := bridge.New(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		err := b.Start(ctx)
		require.ErrorIs(t, err, rberrors.ErrHandshakeFailed)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, b.Running())
	})

	t.Run("process exiting during the handshake aborts it", func(t *testing.T) {
		b := bridge.New(stubOptions("STUB_EXIT_IMMEDIATELY=1"))
		err := b.Start(context.Background())
		require.ErrorIs(t, err, rberrors.ErrHandshakeFailed)
		require.ErrorIs(t, err, rberrors.ErrProcessExited)
	})

	t.Run("spawn failure is reported without a handshake", func(t *testing.T) {
		opts := stubOptions()
		opts.Path = filepath.Join(t.TempDir(), "missing-backend")
		b := bridge.New(opts)

		var mu sync.Mutex
		var reported []error
		b.OnError(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		})

		err := b.Start(context.Background())
		var spawnErr *rberrors.SpawnError
		require.ErrorAs(t, err, &spawnErr)
		require.Equal(t, opts.Path, spawnErr.Path)

		mu.Lock()
		require.Len(t, reported, 1)
		require.ErrorAs(t, reported[0], &spawnErr)
		mu.Unlock()
		require.False(t, b.Running())
	})

	t.Run("second start is rejected", func(t *testing.T) {
		b := startStub(t, stubOptions())
		require.ErrorIs(t, b.Start(context.Background()), rberrors.ErrAlreadyStarted)
	})
}

func TestCalls(t *testing.T) {
	b := startStub(t, stubOptions())
	ctx := context.Background()

	t.Run("concurrent calls answered out of order", func(t *testing.T) {
		delays := []int{300, 100, 200}
		results := make([]int, len(delays))
		errs := make([]error, len(delays))
		var wg sync.WaitGroup
		for i, ms := range delays {
			wg.Add(1)
			go func(i, ms int) {
				defer wg.Done()
				var out struct {
					Slept int `json:"slept"`
				}
				errs[i] = b.CallInto(ctx, "sleep", map[string]int{"ms": ms}, &out)
				results[i] = out.Slept
			}(i, ms)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, delays, results)
	})

	t.Run("echo round-trips params", func(t *testing.T) {
		raw, err := b.Call(ctx, "echo", map[string]any{"project_id": "demo", "n": 3})
		require.NoError(t, err)
		require.JSONEq(t, `{"project_id":"demo","n":3}`, string(raw))
	})

	t.Run("remote error rejects only its call", func(t *testing.T) {
		_, err := b.Call(ctx, "no_such_method", nil)
		var remoteErr *rberrors.RemoteError
		require.ErrorAs(t, err, &remoteErr)
		require.Equal(t, rberrors.CodeMethodNotFound, remoteErr.Code)
		require.True(t, b.Running())
	})

	t.Run("timeout isolates the slow call", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		var slowErr error
		go func() {
			defer wg.Done()
			_, slowErr = b.Call(ctx, "never", nil, rpc.WithTimeout(80*time.Millisecond))
		}()
		raw, err := b.Call(ctx, "echo", []int{1})
		require.NoError(t, err)
		require.JSONEq(t, `[1]`, string(raw))

		wg.Wait()
		require.ErrorIs(t, slowErr, rberrors.ErrCallTimeout)
		require.True(t, b.Running())

		stats, ok := b.Stats()
		require.True(t, ok)
		require.Zero(t, stats.Pending)
	})
}

func TestEnvironmentInjection(t *testing.T) {
	toolchain := t.TempDir()
	opts := stubOptions("REVBRIDGE_STUB_MARK=marked")
	opts.ToolchainDir = toolchain
	b := startStub(t, opts)

	lookup := func(key string) string {
		var out struct {
			Value string `json:"value"`
		}
		require.NoError(t, b.CallInto(context.Background(), "env", map[string]string{"key": key}, &out))
		return out.Value
	}

	require.True(t, strings.HasPrefix(lookup("PATH"), filepath.Join(toolchain, "bin")))
	require.Equal(t, filepath.Join(toolchain, "libexec", "git-core"), lookup("GIT_EXEC_PATH"))
	require.Equal(t, "0", lookup("GIT_TERMINAL_PROMPT"))
	require.Equal(t, "cat", lookup("GIT_PAGER"))
	require.Equal(t, "marked", lookup("REVBRIDGE_STUB_MARK"))
}

func TestEventForwarding(t *testing.T) {
	b := bridge.New(stubOptions())
	logs := make(chan bridge.LogEvent, 16)
	errs := make(chan error, 16)
	b.OnLog(func(ev bridge.LogEvent) { logs <- ev })
	b.OnError(func(err error) { errs <- err })

	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })

	var ok bool
	require.NoError(t, b.CallInto(context.Background(), "noise", nil, &ok))
	require.True(t, ok)

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen["stub ready"] || !seen["noise on stderr"] {
		select {
		case ev := <-logs:
			require.Equal(t, b.PID(), ev.PID)
			seen[ev.Line] = true
		case <-deadline:
			t.Fatalf("stderr lines not forwarded, saw %v", seen)
		}
	}

	select {
	case err := <-errs:
		var decodeErr *rberrors.ProtocolDecodeError
		require.ErrorAs(t, err, &decodeErr)
		require.Equal(t, "Loading review manager...", decodeErr.Line)
	case <-time.After(5 * time.Second):
		t.Fatal("malformed stdout line was not reported")
	}
	require.True(t, b.Running())
}

func TestUnsolicitedExit(t *testing.T) {
	b := startStub(t, stubOptions())
	closed := closeEvents(b)

	_, err := b.Call(context.Background(), "crash", nil)
	require.ErrorIs(t, err, rberrors.ErrProcessExited)

	ev := waitClose(t, closed)
	require.False(t, ev.Requested)
	require.Equal(t, 3, ev.ExitCode)
	require.NoError(t, ev.Err)

	require.False(t, b.Running())
	_, err = b.Call(context.Background(), "ping", nil)
	require.ErrorIs(t, err, rberrors.ErrNotStarted)

	// The bridge can be started again after the session is torn down.
	require.NoError(t, b.Start(context.Background()))
	require.True(t, b.Running())
}

func TestStop(t *testing.T) {
	t.Run("stop rejects pending calls and is idempotent", func(t *testing.T) {
		b := startStub(t, stubOptions())
		closed := closeEvents(b)

		pending := make(chan error, 1)
		go func() {
			_, err := b.Call(context.Background(), "never", nil)
			pending <- err
		}()
		require.Eventually(t, func() bool {
			stats, _ := b.Stats()
			return stats.Pending == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, b.Stop())
		require.ErrorIs(t, <-pending, rberrors.ErrStopped)
		require.True(t, waitClose(t, closed).Requested)

		require.NoError(t, b.Stop())
		require.False(t, b.Running())
		_, err := b.Call(context.Background(), "ping", nil)
		require.ErrorIs(t, err, rberrors.ErrNotStarted)
	})

	t.Run("stop without a session is a no-op", func(t *testing.T) {
		require.NoError(t, bridge.New(stubOptions()).Stop())
	})

	t.Run("a backend ignoring stdin EOF is killed after the grace period", func(t *testing.T) {
		opts := stubOptions("STUB_IGNORE_EOF=1")
		opts.StopGrace = 100 * time.Millisecond
		b := startStub(t, opts)
		closed := closeEvents(b)

		start := time.Now()
		require.NoError(t, b.Stop())
		require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

		ev := waitClose(t, closed)
		require.True(t, ev.Requested)
		require.NotEqual(t, 0, ev.ExitCode)
	})
}

func TestCallBeforeStart(t *testing.T) {
	b := bridge.New(stubOptions())
	_, err := b.Call(context.Background(), "ping", nil)
	require.ErrorIs(t, err, rberrors.ErrNotStarted)
	require.ErrorIs(t, b.CallInto(context.Background(), "ping", nil, &json.RawMessage{}), rberrors.ErrNotStarted)
}
