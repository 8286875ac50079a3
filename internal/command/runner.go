// Package command runs external utilities and reports their exit status.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ExitResult is the captured outcome of a finished process.
type ExitResult struct {
	Code   int
	Stdout []byte
	Stderr []byte
}

// Success reports whether the process exited with status 0.
func (r *ExitResult) Success() bool {
	return r.Code == 0
}

// Runner runs a program to completion. A non-zero exit is reported through
// ExitResult.Code, not as an error; the error covers failures to start or
// wait for the process.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*ExitResult, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Env replaces the child environment when non-nil.
	Env []string
}

// Run executes name with args and buffers both output streams.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (*ExitResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("run %s: %w", name, ctxErr)
	}

	result := &ExitResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	return result, nil
}
