package osquery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// EnrollSecretEnv carries the enrollment secret to osqueryd. The secret is
// never put on the command line.
const EnrollSecretEnv = "OSQUERY_ENROLL_SECRET"

const (
	// DefaultDistributedInterval is the distributed query poll period in seconds.
	DefaultDistributedInterval = 10

	logDirName  = "osquery_logs"
	pidFileName = "osquery.pid"

	// stopGrace is how long a cancelled daemon gets before it is killed.
	stopGrace = 30 * time.Second
)

// Server endpoints osqueryd talks to over TLS.
const (
	EnrollEndpoint           = "/api/osquery/enroll"
	ConfigEndpoint           = "/api/osquery/config"
	LoggerEndpoint           = "/api/osquery/log"
	DistributedReadEndpoint  = "/api/osquery/distributed/read"
	DistributedWriteEndpoint = "/api/osquery/distributed/write"
)

// LaunchOptions describes one osqueryd run.
type LaunchOptions struct {
	OsquerydPath string
	Server       string
	DataDir      string
	// CACertPath is a custom server CA; it wins over SystemCACerts.
	CACertPath string
	// SystemCACerts is the platform bundle, empty when none exists.
	SystemCACerts       string
	EnrollSecret        string
	HostIdentifier      HostIdentifier
	DistributedInterval int
	Verbose             bool
}

// LogDir is where osqueryd writes its filesystem logs.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, logDirName)
}

// EnsureLogDir creates the osqueryd log directory.
func EnsureLogDir(dataDir string) error {
	if err := os.MkdirAll(LogDir(dataDir), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

// SystemCACertsPath returns the CA bundle osqueryd should trust on goos, or
// "" when the platform has no conventional location.
func SystemCACertsPath(goos string) string {
	switch goos {
	case "darwin":
		return "/etc/ssl/cert.pem"
	case "linux":
		return "/etc/ssl/certs/ca-certificates.crt"
	default:
		return ""
	}
}

// DefaultSystemCACerts returns the bundle for this platform if it exists.
func DefaultSystemCACerts() string {
	path := SystemCACertsPath(runtime.GOOS)
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// BuildArgs returns the osqueryd argument list. The order is fixed.
func BuildArgs(opts LaunchOptions) []string {
	interval := opts.DistributedInterval
	if interval <= 0 {
		interval = DefaultDistributedInterval
	}

	args := []string{
		"--config_plugin", "tls",
		"--tls_hostname", opts.Server,
	}

	switch {
	case opts.CACertPath != "":
		args = append(args, "--tls_server_certs", opts.CACertPath)
	case opts.SystemCACerts != "":
		args = append(args, "--tls_server_certs", opts.SystemCACerts)
	}

	args = append(args,
		"--enroll_tls_endpoint", EnrollEndpoint,
		"--config_tls_endpoint", ConfigEndpoint,
		"--enroll_secret_env", EnrollSecretEnv,

		"--logger_plugin", "tls",
		"--logger_tls_endpoint", LoggerEndpoint,

		"--disable_distributed", "false",
		"--distributed_plugin", "tls",
		"--distributed_interval", strconv.Itoa(interval),
		"--distributed_tls_max_attempts", "10",
		"--distributed_tls_read_endpoint", DistributedReadEndpoint,
		"--distributed_tls_write_endpoint", DistributedWriteEndpoint,

		"--pidfile", filepath.Join(opts.DataDir, pidFileName),
		"--logger_path", LogDir(opts.DataDir),
		"--database_path", filepath.Join(opts.DataDir, DatabaseFileName),

		"--host_identifier", opts.HostIdentifier.String(),
	)

	if opts.Verbose {
		args = append(args, "--verbose", "true", "--logger_stderr", "true")
	}

	return args
}

// Command builds the osqueryd process. Cancelling ctx asks the daemon to
// stop and kills it if it has not exited after a grace period.
func Command(ctx context.Context, opts LaunchOptions) *exec.Cmd {
	cmd := exec.CommandContext(ctx, opts.OsquerydPath, BuildArgs(opts)...)
	cmd.Env = childEnv(os.Environ(), opts.EnrollSecret)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return terminate(cmd.Process)
	}
	cmd.WaitDelay = stopGrace
	return cmd
}

// privateEnvPrefix marks the agent's own settings, the org token among
// them. They never reach osqueryd.
const privateEnvPrefix = "SHADOW_"

// childEnv copies environ without the agent's settings or an inherited
// enroll secret, then adds secret.
func childEnv(environ []string, secret string) []string {
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		name = strings.ToUpper(name)
		if strings.HasPrefix(name, privateEnvPrefix) || name == EnrollSecretEnv {
			continue
		}
		env = append(env, kv)
	}
	return append(env, EnrollSecretEnv+"="+secret)
}

// ChildExitError carries a non-zero daemon exit status.
type ChildExitError struct {
	Code int
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("osqueryd exited with code %d", e.Code)
}

// Supervise starts cmd, forwards interrupt and terminate signals to it and
// waits for it to exit. A non-zero exit is returned as *ChildExitError.
func Supervise(ctx context.Context, cmd *exec.Cmd) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, forwardedSignals...)
	defer signal.Stop(sigCh)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start osqueryd: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	for {
		select {
		case sig := <-sigCh:
			// The child may already be gone; Wait reports the outcome.
			_ = cmd.Process.Signal(sig)
		case err := <-done:
			return waitResult(ctx, err)
		}
	}
}

func waitResult(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ChildExitError{Code: exitCode(exitErr)}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("wait for osqueryd: %w", err)
}
