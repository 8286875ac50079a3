package command

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo boom 1>&2; exit 3")
	require.NoError(t, err)

	assert.False(t, res.Success())
	assert.Equal(t, 3, res.Code)
	assert.Equal(t, "boom\n", string(res.Stderr))
}

func TestExecRunner_MissingProgram(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "shadow-no-such-program-xyz")
	require.Error(t, err)
}

func TestExecRunner_Env(t *testing.T) {
	requireShell(t)

	r := ExecRunner{Env: []string{"SHADOW_TEST_VALUE=42"}}
	res, err := r.Run(context.Background(), "/bin/sh", "-c", "printf %s \"$SHADOW_TEST_VALUE\"")
	require.NoError(t, err)
	assert.Equal(t, "42", string(res.Stdout))
}

func TestExecRunner_ContextCancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ExecRunner{}.Run(ctx, "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
