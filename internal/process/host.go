package process

import "os"

// SelfHost is the default Host: it terminates the current process. A
// caller-supplied quit hook (for example the desktop runtime's own quit)
// takes precedence for graceful shutdown; without one Quit falls back to the
// platform default.
type SelfHost struct {
	root string
	quit func()
}

func NewSelfHost(root string, quit func()) *SelfHost {
	return &SelfHost{root: root, quit: quit}
}

func (host *SelfHost) Root() string {
	if host == nil {
		return ""
	}
	return host.root
}

func (host *SelfHost) Quit() {
	if host != nil && host.quit != nil {
		host.quit()
		return
	}
	quitSelf()
}

func (host *SelfHost) Exit() {
	os.Exit(0)
}
