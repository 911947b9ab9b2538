// Package reset decides, per filesystem change, whether to reload window
// contents in place (soft reset) or to relaunch the whole application
// process (hard reset).
//
// Known quirk, kept for compatibility with the behavior this package
// reimplements: the entry-point file is always excluded from the soft watch.
// When no relaunch executable is configured that means changes to the entry
// point produce no reset at all.
package reset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"livereload/internal/logging"
	"livereload/internal/watcher"
)

// ErrExecNotFound reports a configured relaunch executable that does not
// exist. It is raised at setup time, before any watch is established.
var ErrExecNotFound = errors.New("relaunch executable not found")

// Coordinator owns the two watch subscriptions and the hard-reset action.
type Coordinator struct {
	cfg    Config
	deps   Deps
	logger *logging.Logger

	soft watcher.Handle
	hard watcher.Handle

	closeOnce sync.Once
}

// Start validates the configuration and establishes the watch
// subscriptions. On error no subscription is left running.
func Start(cfg Config, deps Deps) (*Coordinator, error) {
	if cfg.Glob == "" {
		return nil, errors.New("watch glob is required")
	}
	if cfg.Entry == "" {
		return nil, errors.New("entry-point path is required")
	}
	if deps.Watch == nil {
		return nil, errors.New("watch service is required")
	}
	if deps.Windows == nil {
		return nil, errors.New("window broadcaster is required")
	}
	if cfg.Exec != "" && (deps.Spawner == nil || deps.Host == nil) {
		return nil, errors.New("spawner and host are required for hard resets")
	}

	// Fail fast on a bad relaunch executable: validated before any watch so
	// a setup failure cannot leave a partial watcher running.
	if cfg.Exec != "" {
		if _, err := os.Stat(cfg.Exec); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrExecNotFound, cfg.Exec, err)
		}
	}

	entry, err := filepath.Abs(cfg.Entry)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger != nil {
		logger = logger.With(map[string]string{"livereload.category": "reset"})
	}
	coordinator := &Coordinator{cfg: cfg, deps: deps, logger: logger}

	ignore := append(defaultIgnore(), cfg.Ignore...)
	softIgnore := append(append([]string{}, ignore...), entry)

	soft, err := deps.Watch.Subscribe(watcher.Spec{
		Pattern: cfg.Glob,
		Ignore:  softIgnore,
	}, coordinator.onSoftChange)
	if err != nil {
		return nil, err
	}
	coordinator.soft = soft

	if cfg.Exec == "" {
		return coordinator, nil
	}

	hardSpec := watcher.Spec{Pattern: entry, Ignore: ignore}
	if cfg.ForceHardReset {
		hardSpec.Pattern = cfg.Glob
	}
	hard, err := deps.Watch.SubscribeOnce(hardSpec, coordinator.onHardChange)
	if err != nil {
		_ = soft.Close()
		return nil, err
	}
	coordinator.hard = hard

	if cfg.ForceHardReset {
		// Every change is a hard reset in this mode; retire the soft watch.
		_ = soft.Close()
		coordinator.soft = nil
	}

	return coordinator, nil
}

// Close retires both subscriptions. The default lifecycle never calls it;
// watches otherwise run until the process ends.
func (coordinator *Coordinator) Close() error {
	if coordinator == nil {
		return nil
	}
	coordinator.closeOnce.Do(func() {
		if coordinator.soft != nil {
			_ = coordinator.soft.Close()
		}
		if coordinator.hard != nil {
			_ = coordinator.hard.Close()
		}
	})
	return nil
}

func (coordinator *Coordinator) onSoftChange(event watcher.Event) {
	if coordinator.logger != nil {
		coordinator.logger.Debug("soft reset", map[string]string{
			"path": event.Path,
		})
	}
	coordinator.deps.Windows.Broadcast()
}

func (coordinator *Coordinator) onHardChange(event watcher.Event) {
	if coordinator.logger != nil {
		coordinator.logger.Info("hard reset", map[string]string{
			"path": event.Path,
		})
	}
	coordinator.hardReset()
}

// hardReset spawns the replacement process and then terminates the current
// one. The ordering is load-bearing: spawning first keeps one instance
// running at all times and lets the replacement come up before the old
// process's resources are released.
func (coordinator *Coordinator) hardReset() {
	cfg := coordinator.cfg
	argv := make([]string, 0, len(cfg.ExecArgs)+1+len(cfg.AppArgs))
	argv = append(argv, cfg.ExecArgs...)
	argv = append(argv, coordinator.deps.Host.Root())
	argv = append(argv, cfg.AppArgs...)

	child, err := coordinator.deps.Spawner.Start(cfg.Exec, argv)
	if err != nil {
		if coordinator.logger != nil {
			coordinator.logger.Warn("relaunch spawn failed", map[string]string{
				"exec":  cfg.Exec,
				"error": err.Error(),
			})
		}
	} else {
		// Fire and forget: the replacement is on its own from here.
		_ = child.Release()
	}

	if cfg.Method == HardResetExit {
		coordinator.deps.Host.Exit()
		return
	}
	coordinator.deps.Host.Quit()
}
