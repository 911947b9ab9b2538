//go:build windows

package process

import "os"

// quitSelf has no SIGTERM equivalent on Windows; exit directly.
func quitSelf() {
	os.Exit(0)
}
