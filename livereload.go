// Package livereload watches a development application's source files and
// resets the running application when they change. Changes to ordinary files
// reload the content of every open window in place (soft reset); a change to
// the entry-point file spawns a detached replacement process and terminates
// the current one (hard reset).
//
// Known quirk, preserved on purpose: the entry-point file is always excluded
// from the soft watch, so without a relaunch executable configured, changes
// to the entry point produce no reset at all.
package livereload

import (
	"io"
	"os"
	"sync"
	"time"

	"livereload/internal/logging"
	"livereload/internal/process"
	"livereload/internal/reset"
	"livereload/internal/watcher"
	"livereload/internal/window"
)

// ErrExecNotFound reports a configured relaunch executable that does not
// exist. Raised by Start before any watch is established.
var ErrExecNotFound = reset.ErrExecNotFound

// Options configures a live-reload session. The zero value watches for soft
// resets only.
type Options struct {
	// Exec is the path to the relaunch executable. Setting it enables hard
	// resets; its existence is validated at Start.
	Exec string `yaml:"exec"`
	// ExecArgs are prepended before the application root on the relaunch
	// command line.
	ExecArgs []string `yaml:"exec_args"`
	// AppArgs are appended after the application root.
	AppArgs []string `yaml:"app_args"`
	// HardResetMethod is "exit" for immediate termination or "quit" for a
	// graceful shutdown (the default).
	HardResetMethod string `yaml:"hard_reset_method"`
	// ForceHardReset turns every change into a hard reset and disables the
	// soft-reset path entirely.
	ForceHardReset bool `yaml:"force_hard_reset"`
	// Ignore patterns (doublestar) are excluded from both watch scopes, on
	// top of the default dependency-directory and dot-file exclusions.
	Ignore []string `yaml:"ignore"`
	// Debounce collapses bursts of change events per path. Zero uses the
	// watcher default.
	Debounce time.Duration `yaml:"debounce"`
	// LogLevel is one of debug, info, warning, error. Default info.
	LogLevel string `yaml:"log_level"`
	// AppRoot is the path handed to the relaunched process. Defaults to the
	// current working directory.
	AppRoot string `yaml:"app_root"`
	// Quiet discards log output entirely.
	Quiet bool `yaml:"quiet"`

	// Collaborator overrides, not loadable from a config file.
	Host    process.Host       `yaml:"-"`
	Spawner process.Spawner    `yaml:"-"`
	Logger  *logging.Logger    `yaml:"-"`
	Watch   reset.WatchService `yaml:"-"`
}

// Session is a running live-reload setup. Watches run for the life of the
// process unless Close is called.
type Session struct {
	coordinator *reset.Coordinator
	owned       *watcher.Watcher
	registry    *window.Registry
	logger      *logging.Logger
	closeOnce   sync.Once
}

// Start validates the options and establishes the watch subscriptions. On
// error nothing is left running.
func Start(glob, entry string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		level, _ := logging.ParseLevel(opts.LogLevel)
		output := io.Writer(os.Stdout)
		if opts.Quiet {
			output = io.Discard
		}
		logger = logging.NewLoggerWithOutput(level, output)
	}

	registry := window.NewRegistry(logger)

	watch := opts.Watch
	var owned *watcher.Watcher
	if watch == nil {
		instance, err := watcher.NewWithOptions(watcher.Options{
			Logger:   logger,
			Debounce: opts.Debounce,
			ErrorHandler: func(err error) {
				logger.Error("watcher failed, file changes are no longer seen", map[string]string{
					"error": err.Error(),
				})
			},
		})
		if err != nil {
			registry.Close()
			return nil, err
		}
		owned = instance
		watch = instance
	}

	root := opts.AppRoot
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}
	host := opts.Host
	if host == nil {
		host = process.NewSelfHost(root, nil)
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = process.ExecSpawner{}
	}

	coordinator, err := reset.Start(reset.Config{
		Glob:           glob,
		Entry:          entry,
		Exec:           opts.Exec,
		ExecArgs:       opts.ExecArgs,
		AppArgs:        opts.AppArgs,
		Method:         reset.HardResetMethod(opts.HardResetMethod),
		ForceHardReset: opts.ForceHardReset,
		Ignore:         opts.Ignore,
		Debounce:       opts.Debounce,
	}, reset.Deps{
		Watch:   watch,
		Windows: registry,
		Spawner: spawner,
		Host:    host,
		Logger:  logger,
	})
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		registry.Close()
		return nil, err
	}

	return &Session{
		coordinator: coordinator,
		owned:       owned,
		registry:    registry,
		logger:      logger,
	}, nil
}

// Registry exposes the window registry so the host runtime can track newly
// created windows.
func (session *Session) Registry() *window.Registry {
	if session == nil {
		return nil
	}
	return session.registry
}

// Track registers a newly created window for soft-reset broadcasts.
func (session *Session) Track(w window.Window) {
	if session == nil {
		return
	}
	session.registry.Track(w)
}

// Close tears down the watch subscriptions and the registry. Optional; the
// default lifecycle lets watches run until the process ends.
func (session *Session) Close() error {
	if session == nil {
		return nil
	}
	session.closeOnce.Do(func() {
		_ = session.coordinator.Close()
		if session.owned != nil {
			_ = session.owned.Close()
		}
		session.registry.Close()
	})
	return nil
}
