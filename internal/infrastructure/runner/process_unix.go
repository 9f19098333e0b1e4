//go:build !windows

package runner

import (
	"context"
	"os/exec"
	"syscall"
)

// configureProcess places the child in its own process group so signals
// reach everything it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// DeveloperEnvironment needs no preparation outside Windows; compilers are
// expected on PATH.
func DeveloperEnvironment(context.Context) ([]string, error) {
	return nil, nil
}
