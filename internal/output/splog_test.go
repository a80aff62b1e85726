package output_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/output"
)

func TestSplogConsole(t *testing.T) {
	t.Run("plain messages off a terminal", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		var buf bytes.Buffer
		splog, err := output.NewSplogWithConfig(output.SplogOptions{Writer: &buf})
		require.NoError(t, err)

		splog.Info("fetched %d refs", 3)
		splog.Warn("remote is not https")
		splog.Error("push failed")
		splog.Tip("run auth login")
		splog.Debug("hidden")
		splog.Log(slog.LevelInfo, "backend log", "pid", 42)

		require.Equal(t, "fetched 3 refs\nremote is not https\npush failed\nrun auth login\nbackend log\n", buf.String())
	})

	t.Run("debug flag shows debug messages", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		var buf bytes.Buffer
		splog, err := output.NewSplogWithConfig(output.SplogOptions{Writer: &buf, Debug: true})
		require.NoError(t, err)

		splog.Debug("ping attempt %d", 2)
		require.Equal(t, "ping attempt 2\n", buf.String())
	})

	t.Run("DEBUG environment shows debug messages", func(t *testing.T) {
		t.Setenv("DEBUG", "1")
		var buf bytes.Buffer
		splog, err := output.NewSplogWithConfig(output.SplogOptions{Writer: &buf})
		require.NoError(t, err)

		splog.Debug("visible")
		require.Equal(t, "visible\n", buf.String())
	})

	t.Run("percent signs without args are kept", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := output.NewSplogWithConfig(output.SplogOptions{Writer: &buf})
		require.NoError(t, err)

		splog.Info("100% done")
		require.Equal(t, "100% done\n", buf.String())
	})
}

func TestSplogFile(t *testing.T) {
	t.Setenv("DEBUG", "")
	logFile := filepath.Join(t.TempDir(), "logs", "revbridge.log")
	var buf bytes.Buffer
	splog, err := output.NewSplogWithConfig(output.SplogOptions{Writer: &buf, LogFile: logFile})
	require.NoError(t, err)

	splog.Debug("only in the file")
	splog.Log(slog.LevelWarn, "backend exited", "pid", 42, "code", 3)
	require.NoError(t, splog.Close())

	require.Equal(t, "backend exited\n", buf.String())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "level=DEBUG")
	require.Contains(t, lines[0], `msg="only in the file"`)
	require.Contains(t, lines[1], "level=WARN")
	require.Contains(t, lines[1], "pid=42")
	require.Contains(t, lines[1], "code=3")
}

func TestStyles(t *testing.T) {
	plain := output.NewStyles(false)
	require.Equal(t, "done", plain.Success("done"))
	require.Equal(t, "careful", plain.Warning("careful"))
	require.Equal(t, "Enter code ABCD-1234 at https://example.invalid/device",
		plain.UserCode("ABCD-1234", "https://example.invalid/device"))

	decorated := output.NewStyles(true)
	require.Contains(t, decorated.UserCode("ABCD-1234", "https://example.invalid/device"), "ABCD-1234")
	require.Contains(t, decorated.Failure("boom"), "boom")

	var buf bytes.Buffer
	require.False(t, output.IsTerminal(&buf))
}

func TestLogFilePath(t *testing.T) {
	t.Setenv("REVBRIDGE_LOG_FILE", "/tmp/custom.log")
	require.Equal(t, "/tmp/custom.log", output.LogFilePath())

	t.Setenv("REVBRIDGE_LOG_FILE", "")
	require.True(t, strings.HasSuffix(output.LogFilePath(), filepath.Join(".revbridge", "logs", "revbridge.log")))
}
