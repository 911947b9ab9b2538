package window

import (
	"sync"

	"livereload/internal/logging"
)

// Registry maintains the live set of open windows. Windows are tracked by
// handle identity, never by position, so removal cannot race with concurrent
// inserts the way index-based bookkeeping can.
type Registry struct {
	mu      sync.Mutex
	windows map[Window]struct{}
	logger  *logging.Logger
	done    chan struct{}
	once    sync.Once
}

func NewRegistry(logger *logging.Logger) *Registry {
	if logger != nil {
		logger = logger.With(map[string]string{"livereload.category": "windows"})
	}
	return &Registry{
		windows: make(map[Window]struct{}),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Track adds a window to the registry and removes it again when the window
// reports itself closed.
func (registry *Registry) Track(window Window) {
	if registry == nil || window == nil {
		return
	}

	registry.mu.Lock()
	if _, tracked := registry.windows[window]; tracked {
		registry.mu.Unlock()
		return
	}
	registry.windows[window] = struct{}{}
	registry.mu.Unlock()

	go func() {
		select {
		case <-window.Closed():
			registry.remove(window)
		case <-registry.done:
		}
	}()
}

// Consume tracks every window delivered on the channel until it is closed.
// The channel is typically fed by a window lifecycle source such as the
// websocket bridge.
func (registry *Registry) Consume(windows <-chan Window) {
	if registry == nil || windows == nil {
		return
	}
	go func() {
		for window := range windows {
			registry.Track(window)
		}
	}()
}

// Broadcast asks every currently tracked window to reload its content while
// bypassing any cache. Individual reload failures are logged and skipped;
// they never interrupt delivery to the remaining windows.
func (registry *Registry) Broadcast() {
	if registry == nil {
		return
	}
	registry.mu.Lock()
	windows := make([]Window, 0, len(registry.windows))
	for window := range registry.windows {
		windows = append(windows, window)
	}
	registry.mu.Unlock()

	for _, window := range windows {
		if err := window.Reload(true); err != nil && registry.logger != nil {
			registry.logger.Warn("window reload failed", map[string]string{
				"error": err.Error(),
			})
		}
	}
}

func (registry *Registry) Len() int {
	if registry == nil {
		return 0
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.windows)
}

// Close stops the close-watching goroutines. Tracked windows are left alone.
func (registry *Registry) Close() {
	if registry == nil {
		return
	}
	registry.once.Do(func() {
		close(registry.done)
	})
}

func (registry *Registry) remove(window Window) {
	registry.mu.Lock()
	delete(registry.windows, window)
	registry.mu.Unlock()
}
