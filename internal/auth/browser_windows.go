//go:build windows

package auth

import (
	"os/exec"
)

// OpenBrowser opens a URL in the default browser on Windows without waiting
// for the browser to exit.
func OpenBrowser(url string) error {
	return startDetached(exec.Command("cmd", "/c", "start", "", url))
}
