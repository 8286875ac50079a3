//go:build windows

package osquery

import (
	"os"
	"os/exec"
)

var forwardedSignals = []os.Signal{os.Interrupt}

// terminate kills p; Windows processes cannot be sent SIGTERM.
func terminate(p *os.Process) error {
	return p.Kill()
}

func exitCode(err *exec.ExitError) int {
	return err.ExitCode()
}
