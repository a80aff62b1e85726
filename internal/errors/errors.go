// Package errors provides sentinel errors and custom error types for revbridge.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common conditions
var (
	// ErrStopped indicates that the bridge was stopped while a call was outstanding
	ErrStopped = errors.New("bridge stopped")

	// ErrNotStarted indicates a call was made before the bridge was started
	ErrNotStarted = errors.New("bridge not started")

	// ErrAlreadyStarted indicates Start was called on a running bridge
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrProcessExited indicates the child process terminated on its own
	ErrProcessExited = errors.New("backend process exited")

	// ErrCallTimeout indicates a call received no response within its deadline
	ErrCallTimeout = errors.New("call timed out")

	// ErrHandshakeFailed indicates the startup ping never succeeded
	ErrHandshakeFailed = errors.New("backend handshake failed")

	// ErrBranchNotFound indicates that a branch does not exist
	ErrBranchNotFound = errors.New("branch not found")

	// ErrDiverged indicates a fast-forward-only pull was rejected
	ErrDiverged = errors.New("local and remote branches have diverged")

	// ErrDeviceCodeExpired indicates the device code expired before authorization
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrAccessDenied indicates the user declined the authorization request
	ErrAccessDenied = errors.New("access denied")

	// ErrNoSession indicates that no valid stored session exists
	ErrNoSession = errors.New("not authenticated")
)

// SpawnError represents a failure to start the backend executable
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start backend %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NewSpawnError creates a new SpawnError
func NewSpawnError(path string, err error) *SpawnError {
	return &SpawnError{Path: path, Err: err}
}

// HandshakeError represents a startup handshake that never observed a ping reply
type HandshakeError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *HandshakeError) Error() string {
	msg := fmt.Sprintf("backend did not answer ping after %d attempt(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Is returns true if the target error is ErrHandshakeFailed
func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshakeFailed
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ProtocolDecodeError represents a stdout line that is not a valid JSON-RPC response
type ProtocolDecodeError struct {
	Line string
	Err  error
}

func (e *ProtocolDecodeError) Error() string {
	line := e.Line
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return fmt.Sprintf("malformed response line %q: %v", line, e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error {
	return e.Err
}

// JSON-RPC 2.0 error codes, plus the backend's own range starting at -32000.
const (
	CodeParseError          = -32700
	CodeInvalidRequest      = -32600
	CodeMethodNotFound      = -32601
	CodeInvalidParams       = -32602
	CodeInternalError       = -32603
	CodeRepoSetupError      = -32000
	CodeOperationError      = -32001
	CodeServiceNotAvailable = -32002
	CodeMissingDependency   = -32003
	CodeParameterError      = -32004
)

// RemoteError represents a JSON-RPC error object returned by the backend
type RemoteError struct {
	Method  string
	Code    int
	Message string
	Data    string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
	if e.Data != "" {
		msg += " - " + e.Data
	}
	return msg
}

// CodeName returns a short name for well known error codes
func (e *RemoteError) CodeName() string {
	switch e.Code {
	case CodeParseError:
		return "parse_error"
	case CodeInvalidRequest:
		return "invalid_request"
	case CodeMethodNotFound:
		return "method_not_found"
	case CodeInvalidParams:
		return "invalid_params"
	case CodeInternalError:
		return "internal_error"
	case CodeRepoSetupError:
		return "repo_setup_error"
	case CodeOperationError:
		return "operation_error"
	case CodeServiceNotAvailable:
		return "service_not_available"
	case CodeMissingDependency:
		return "missing_dependency"
	case CodeParameterError:
		return "parameter_error"
	default:
		return "unknown"
	}
}

// CallTimeoutError represents a call whose deadline elapsed before a response arrived
type CallTimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("%s: no response within %s", e.Method, e.Timeout)
}

// Is returns true if the target error is ErrCallTimeout
func (e *CallTimeoutError) Is(target error) bool {
	return target == ErrCallTimeout
}

// BranchNotFoundError represents an error when a branch is not found
type BranchNotFoundError struct {
	BranchName string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %s does not exist", e.BranchName)
}

// Is returns true if the target error is ErrBranchNotFound
func (e *BranchNotFoundError) Is(target error) bool {
	return target == ErrBranchNotFound
}

// NewBranchNotFoundError creates a new BranchNotFoundError
func NewBranchNotFoundError(branchName string) *BranchNotFoundError {
	return &BranchNotFoundError{BranchName: branchName}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// Detail returns the most useful single message for display: stderr, then stdout, then the cause
func (e *GitCommandError) Detail() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("git %s exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, exitCode int, stdout, stderr string, err error) *GitCommandError {
	return &GitCommandError{
		Command:  command,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	}
}

// ProviderError represents a terminal error reported by the OAuth provider
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// Is maps the provider codes that have sentinels onto them
func (e *ProviderError) Is(target error) bool {
	switch e.Code {
	case "expired_token":
		return target == ErrDeviceCodeExpired
	case "access_denied":
		return target == ErrAccessDenied
	}
	return false
}
