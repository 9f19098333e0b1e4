//go:build windows

package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

const vswherePath = `C:\Program Files (x86)\Microsoft Visual Studio\Installer\vswhere.exe`

func configureProcess(*exec.Cmd) {}

// terminate kills outright: Windows has no terminate signal for console
// processes that exec can deliver.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return terminate(cmd)
}

// DeveloperEnvironment loads the x64 Visual Studio developer environment
// (vswhere, then vcvarsall.bat) so compilers and resource tools resolve. A
// machine without Visual Studio yields no variables and no error.
func DeveloperEnvironment(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(vswherePath); err != nil {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, vswherePath,
		"-latest", "-products", "*",
		"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
		"-property", "installationPath",
	).Output()
	if err != nil {
		return nil, fmt.Errorf("vswhere: %w", err)
	}
	install := strings.TrimSpace(string(out))
	if install == "" {
		return nil, nil
	}
	vcvars := filepath.Join(install, "VC", "Auxiliary", "Build", "vcvarsall.bat")
	if _, err := os.Stat(vcvars); err != nil {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, "cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: fmt.Sprintf(`cmd.exe /s /c "call "%s" x64 >nul && set"`, vcvars),
	}
	out, err = cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("vcvarsall: %w", err)
	}
	return parseEnvironment(string(out)), nil
}
