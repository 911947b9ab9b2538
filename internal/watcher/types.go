package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"livereload/internal/logging"
)

// Event represents a single filesystem change.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Handle releases watcher resources for a subscription.
type Handle interface {
	Close() error
}

// Spec describes one watch subscription: a glob pattern (or literal path)
// plus ignore patterns that suppress delivery. Patterns use doublestar
// syntax; ignore patterns are matched against the full event path.
type Spec struct {
	Pattern string
	Ignore  []string
}

// Service is the subscription surface consumed by the reset coordinator.
// Subscribe delivers every matching change for the life of the handle;
// SubscribeOnce delivers the first matching change and then retires itself.
type Service interface {
	Subscribe(spec Spec, fn func(Event)) (Handle, error)
	SubscribeOnce(spec Spec, fn func(Event)) (Handle, error)
}

// Options controls watcher behavior.
type Options struct {
	Logger       *logging.Logger
	Debounce     time.Duration
	MaxWatches   int
	ErrorHandler func(error)
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsDelivered uint64
	EventsDropped   uint64
	Errors          uint64
	RestartAttempts int
}
