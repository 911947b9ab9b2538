package desktop

import (
	"context"
	"os"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Host terminates the application through the Wails runtime.
type Host struct {
	ctx  context.Context
	root string
}

func NewHost(ctx context.Context, root string) *Host {
	return &Host{ctx: ctx, root: root}
}

// Quit asks the runtime to shut down, running the app's shutdown hooks.
func (host *Host) Quit() {
	runtime.Quit(host.ctx)
}

// Exit skips runtime cleanup entirely.
func (host *Host) Exit() {
	os.Exit(0)
}

func (host *Host) Root() string {
	return host.root
}
