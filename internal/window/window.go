// Package window tracks the set of currently open application windows so a
// content reload can be broadcast to all of them.
package window

// Window is an open top-level application window owned by the host runtime.
// Implementations must be comparable (pointer types) because the registry
// keys its tracked set by handle identity.
type Window interface {
	// Reload instructs the window to reload its content. When ignoreCache is
	// set the window must re-fetch resources instead of replaying a cache.
	Reload(ignoreCache bool) error
	// Closed is closed when the window has been closed by the runtime.
	Closed() <-chan struct{}
}
