package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	rberrors "revbridge.dev/revbridge/internal/errors"
)

// DefaultCommandTimeout is the default timeout for git commands
const DefaultCommandTimeout = 5 * time.Minute

// Result is the raw outcome of one git invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Executor runs git with an argument vector against a working directory.
// A non-zero exit is reported in Result, not as an error; the error is
// reserved for commands that could not run to completion.
type Executor interface {
	Run(ctx context.Context, dir string, args ...string) (Result, error)
}

// CommandRunner handles execution of git commands
type CommandRunner struct {
	// Binary is the git executable; empty means "git" from PATH.
	Binary string
	// ToolchainDir, when set, puts a bundled git toolchain first on PATH.
	ToolchainDir string
	// Env entries override the inherited environment.
	Env []string
}

// NewCommandRunner creates a CommandRunner for the given binary and optional
// bundled toolchain. An empty or bare "git" binary resolves inside the
// toolchain, so the executable always matches its GIT_EXEC_PATH.
func NewCommandRunner(binary, toolchainDir string) *CommandRunner {
	if binary == "" || (binary == "git" && toolchainDir != "") {
		binary = ToolchainBinary(toolchainDir)
	}
	return &CommandRunner{Binary: binary, ToolchainDir: toolchainDir}
}

// Run executes a git command with the given context. It never prompts: the
// environment always carries NonInteractiveEnv.
func (r *CommandRunner) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// If no timeout/deadline is set in the context, add the default one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	binary := r.Binary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	base := os.Environ()
	cmd.Env = MergeEnv(base, ToolchainEnv(r.ToolchainDir, base), r.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, rberrors.NewGitCommandError(binary, args, -1, res.Stdout, res.Stderr, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, rberrors.NewGitCommandError(binary, args, -1, res.Stdout, res.Stderr, err)
}

// output runs a command that is expected to succeed and returns its trimmed stdout.
func output(ctx context.Context, runner Executor, dir string, args ...string) (string, error) {
	res, err := runner.Run(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", commandError(res, args...)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func commandError(res Result, args ...string) *rberrors.GitCommandError {
	return rberrors.NewGitCommandError("git", args, res.ExitCode, res.Stdout, res.Stderr, nil)
}
