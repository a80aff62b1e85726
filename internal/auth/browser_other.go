//go:build !linux && !darwin && !windows

package auth

import (
	"fmt"
	"runtime"
)

// OpenBrowser is unsupported on this platform; the verification URI is still
// published in the status stream.
func OpenBrowser(url string) error {
	return fmt.Errorf("cannot open %s: no browser launcher for %s", url, runtime.GOOS)
}
