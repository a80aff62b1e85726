package git

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// NonInteractiveEnv disables pagers and every kind of credential prompt so a
// git invocation can never block waiting for a terminal.
var NonInteractiveEnv = []string{
	"GIT_TERMINAL_PROMPT=0",
	"GIT_PAGER=cat",
	"PAGER=cat",
	"GCM_INTERACTIVE=never",
}

// ToolchainEnv returns the variables that make a bundled git toolchain rooted
// at dir the one found on PATH, followed by NonInteractiveEnv. An empty dir
// yields only NonInteractiveEnv. base supplies the PATH being extended.
func ToolchainEnv(dir string, base []string) []string {
	env := make([]string, 0, len(NonInteractiveEnv)+2)
	if dir != "" {
		binDir, execPath := toolchainLayout(dir)
		path := binDir
		if current := LookupEnv(base, "PATH"); current != "" {
			path += string(os.PathListSeparator) + current
		}
		env = append(env, "PATH="+path, "GIT_EXEC_PATH="+execPath)
	}
	return append(env, NonInteractiveEnv...)
}

func toolchainLayout(dir string) (binDir, execPath string) {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "cmd"), filepath.Join(dir, "mingw64", "libexec", "git-core")
	}
	return filepath.Join(dir, "bin"), filepath.Join(dir, "libexec", "git-core")
}

// ToolchainBinary returns the git executable inside a bundled toolchain, or
// "git" when dir is empty.
func ToolchainBinary(dir string) string {
	if dir == "" {
		return "git"
	}
	binDir, _ := toolchainLayout(dir)
	name := "git"
	if runtime.GOOS == "windows" {
		name = "git.exe"
	}
	return filepath.Join(binDir, name)
}

// MergeEnv overlays each list of KEY=VALUE entries onto base. Later entries
// replace earlier ones with the same key; the position of the first
// occurrence is kept.
func MergeEnv(base []string, overlays ...[]string) []string {
	out := make([]string, 0, len(base))
	index := make(map[string]int, len(base))
	add := func(kv string) {
		key := envKey(kv)
		if i, ok := index[key]; ok {
			out[i] = kv
			return
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	for _, kv := range base {
		add(kv)
	}
	for _, overlay := range overlays {
		for _, kv := range overlay {
			add(kv)
		}
	}
	return out
}

// LookupEnv returns the value of key in env, or "" when absent.
func LookupEnv(env []string, key string) string {
	value := ""
	for _, kv := range env {
		if envKey(kv) == normalizeKey(key) {
			value = kv[strings.IndexByte(kv, '=')+1:]
		}
	}
	return value
}

func envKey(kv string) string {
	key := kv
	if i := strings.IndexByte(kv, '='); i >= 0 {
		key = kv[:i]
	}
	return normalizeKey(key)
}

func normalizeKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
