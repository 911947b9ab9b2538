package reset

import (
	"time"

	"livereload/internal/logging"
	"livereload/internal/process"
	"livereload/internal/watcher"
)

// HardResetMethod selects how the current process is terminated after the
// replacement has been spawned.
type HardResetMethod string

const (
	// HardResetQuit asks the host runtime to shut down gracefully.
	HardResetQuit HardResetMethod = "quit"
	// HardResetExit terminates immediately, skipping host cleanup.
	HardResetExit HardResetMethod = "exit"
)

// Config describes one coordinator instance. It is treated as immutable
// after Start.
type Config struct {
	// Glob selects the files whose changes trigger a soft reset.
	Glob string
	// Entry is the entry-point file; changing it warrants a hard reset.
	Entry string

	// Exec is the relaunch executable. Hard resets are enabled only when it
	// is set; its existence is validated before any watch is established.
	Exec string
	// ExecArgs are placed before the application root on the relaunch
	// command line; AppArgs after it.
	ExecArgs []string
	AppArgs  []string

	// Method defaults to HardResetQuit. Any value other than HardResetExit
	// quits gracefully.
	Method HardResetMethod

	// ForceHardReset widens the hard-reset watch to the full glob and
	// disables soft resets entirely.
	ForceHardReset bool

	// Ignore patterns are forwarded to the watch subscriptions on top of the
	// default exclusions.
	Ignore []string

	// Debounce is recorded for callers constructing their own watcher; the
	// coordinator itself forwards specs verbatim.
	Debounce time.Duration
}

// Broadcaster delivers a soft reset to every open window.
type Broadcaster interface {
	Broadcast()
}

// WatchService is the filesystem watch collaborator. Subscribe delivers
// every matching change; SubscribeOnce delivers the first and then retires.
type WatchService interface {
	Subscribe(spec watcher.Spec, fn func(watcher.Event)) (watcher.Handle, error)
	SubscribeOnce(spec watcher.Spec, fn func(watcher.Event)) (watcher.Handle, error)
}

// Deps are the coordinator's collaborators.
type Deps struct {
	Watch   WatchService
	Windows Broadcaster
	Spawner process.Spawner
	Host    process.Host
	Logger  *logging.Logger
}

// defaultIgnore excludes dependency directories and dot-files from both
// watch scopes.
func defaultIgnore() []string {
	return []string{
		"**/node_modules",
		"**/node_modules/**",
		"**/.*",
		"**/.*/**",
	}
}
