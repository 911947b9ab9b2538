// Package process holds the process-level collaborators of the reset
// coordinator: spawning a detached replacement process and terminating the
// current one.
package process

// Child is a handle to a spawned process. Release drops the parent's
// interest so the child keeps running on its own.
type Child interface {
	Release() error
}

// Spawner starts a new process from an executable path and argument list.
type Spawner interface {
	Start(path string, argv []string) (Child, error)
}

// Host exposes the lifecycle operations of the process being developed:
// graceful quit, forced exit, and the application root path handed to the
// relaunched process.
type Host interface {
	Quit()
	Exit()
	Root() string
}
