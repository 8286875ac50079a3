//go:build !windows

package osquery

import (
	"os"
	"os/exec"
	"syscall"
)

var forwardedSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

// exitCode follows the shell convention of 128+N for a child killed by
// signal N.
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}
