package process

import (
	"os"
	"os/exec"
)

// ExecSpawner starts processes with exec.Cmd. The child inherits the
// parent's standard streams but runs detached from its process group, so it
// survives the parent's termination.
type ExecSpawner struct{}

func (ExecSpawner) Start(path string, argv []string) (Child, error) {
	cmd := exec.Command(path, argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execChild{process: cmd.Process}, nil
}

type execChild struct {
	process *os.Process
}

func (child *execChild) Release() error {
	if child == nil || child.process == nil {
		return nil
	}
	return child.process.Release()
}
