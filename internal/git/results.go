package git

import "strings"

// Reserved values of the Error field.
const (
	// ErrorDiverged marks a fast-forward-only pull that failed because local
	// and remote histories have diverged.
	ErrorDiverged = "DIVERGED"
	// ErrorConflict marks a merge that stopped with conflicts in the tree.
	ErrorConflict = "CONFLICT"
)

// GitResult is the outcome of an operation with no payload beyond its output.
type GitResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Output  string `json:"output,omitempty"`
}

// BranchInfo describes one entry of ListBranches.
type BranchInfo struct {
	Name           string `json:"name"`
	Current        bool   `json:"current"`
	Remote         bool   `json:"remote"`
	Upstream       string `json:"upstream,omitempty"`
	Ahead          int    `json:"ahead"`
	Behind         int    `json:"behind"`
	LastCommitDate string `json:"lastCommitDate,omitempty"`
}

// GitBranchListResult is the outcome of ListBranches.
type GitBranchListResult struct {
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
	Current  string       `json:"current,omitempty"`
	Branches []BranchInfo `json:"branches"`
}

// CommitInfo is one entry of Log.
type CommitInfo struct {
	Hash      string `json:"hash"`
	ShortHash string `json:"shortHash"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	Date      string `json:"date"`
}

// GitLogResult is the outcome of Log, most recent commit first.
type GitLogResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Commits []CommitInfo `json:"commits"`
}

// GitDirtyState summarises the working tree.
type GitDirtyState struct {
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	IsDirty          bool   `json:"isDirty"`
	UncommittedCount int    `json:"uncommittedCount"`
	UntrackedCount   int    `json:"untrackedCount"`
}

func succeeded(res Result) GitResult {
	return GitResult{Success: true, Output: strings.TrimSpace(res.Stdout)}
}

func failed(msg string) GitResult {
	return GitResult{Error: msg}
}

// failure builds the message for a non-zero exit: stderr when present, then
// stdout, then the exit code.
func failure(res Result, args []string) string {
	return commandError(res, args...).Detail()
}
