// Package desktop adapts the Wails v2 runtime to the livereload window and
// host contracts.
package desktop

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Window wraps a Wails application window. MarkClosed must be called from
// the application's shutdown hook so the registry retires the window.
type Window struct {
	ctx    context.Context
	closed chan struct{}
	once   sync.Once
}

func NewWindow(ctx context.Context) *Window {
	return &Window{
		ctx:    ctx,
		closed: make(chan struct{}),
	}
}

func (window *Window) Reload(ignoreCache bool) error {
	if ignoreCache {
		runtime.WindowReloadApp(window.ctx)
		return nil
	}
	runtime.WindowReload(window.ctx)
	return nil
}

func (window *Window) Closed() <-chan struct{} {
	return window.closed
}

func (window *Window) MarkClosed() {
	window.once.Do(func() {
		close(window.closed)
	})
}
