//go:build linux

package auth

import (
	"os/exec"
)

// OpenBrowser opens a URL in the default browser on Linux without waiting
// for the browser to exit.
func OpenBrowser(url string) error {
	return startDetached(exec.Command("xdg-open", url))
}
