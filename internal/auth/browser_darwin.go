//go:build darwin

package auth

import (
	"os/exec"
)

// OpenBrowser opens a URL in the default browser on macOS without waiting
// for the browser to exit.
func OpenBrowser(url string) error {
	return startDetached(exec.Command("open", url))
}
