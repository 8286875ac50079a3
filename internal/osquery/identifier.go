package osquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyprwatch/shadow/internal/command"
)

// HostIdentifier selects how osquery identifies the host.
type HostIdentifier int

const (
	// HostIdentifierUUID uses the hardware UUID from system_info.
	HostIdentifierUUID HostIdentifier = iota
	// HostIdentifierInstance uses osquery's random per-database instance id.
	// Useful for VMs and containers that share a hardware UUID.
	HostIdentifierInstance
)

// DatabaseFileName is the osquery RocksDB directory under the data dir.
const DatabaseFileName = "osquery.db"

var ErrIdentifierParse = errors.New("cannot parse host identifier from osquery output")

// String returns the value osqueryd expects for --host_identifier.
func (h HostIdentifier) String() string {
	switch h {
	case HostIdentifierInstance:
		return "instance"
	default:
		return "uuid"
	}
}

// Query is the SQL that yields the identifier for this mode.
func (h HostIdentifier) Query() string {
	if h == HostIdentifierInstance {
		return "SELECT instance_id FROM osquery_info;"
	}
	return "SELECT uuid FROM system_info;"
}

// Field is the result column holding the identifier.
func (h HostIdentifier) Field() string {
	if h == HostIdentifierInstance {
		return "instance_id"
	}
	return "uuid"
}

// NeedsDatabase reports whether the query must run against the persistent
// database so the value survives restarts.
func (h HostIdentifier) NeedsDatabase() bool {
	return h == HostIdentifierInstance
}

// ParseHostIdentifier accepts "uuid" or "instance", case-insensitively.
func ParseHostIdentifier(s string) (HostIdentifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uuid":
		return HostIdentifierUUID, nil
	case "instance":
		return HostIdentifierInstance, nil
	default:
		return 0, fmt.Errorf("invalid host identifier %q: must be uuid or instance", s)
	}
}

// QueryError reports a non-zero exit from a one-shot osqueryd run.
type QueryError struct {
	ExitCode int
	Stderr   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("osquery query failed (exit %d): %s", e.ExitCode, e.Stderr)
}

// Runner runs a program to completion; command.ExecRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*command.ExitResult, error)
}

// QueryArgs returns the arguments for the one-shot identifier query.
func QueryArgs(mode HostIdentifier, dataDir string) []string {
	args := []string{"-S", "--json"}
	if mode.NeedsDatabase() {
		args = append(args, "--database_path", filepath.Join(dataDir, DatabaseFileName))
	}
	return append(args, mode.Query())
}

// ReadHostIdentifier runs osqueryd in shell mode and returns the identifier
// for mode. dataDir is only used by modes that need the database.
func ReadHostIdentifier(ctx context.Context, runner Runner, osquerydPath string, mode HostIdentifier, dataDir string) (string, error) {
	if runner == nil {
		runner = command.ExecRunner{}
	}

	res, err := runner.Run(ctx, osquerydPath, QueryArgs(mode, dataDir)...)
	if err != nil {
		return "", fmt.Errorf("run osquery: %w", err)
	}
	if res.Code != 0 {
		return "", &QueryError{ExitCode: res.Code, Stderr: strings.TrimSpace(string(res.Stderr))}
	}

	return parseIdentifier(res.Stdout, mode.Field())
}

// parseIdentifier extracts field from the first row of osquery JSON output.
func parseIdentifier(out []byte, field string) (string, error) {
	var rows []map[string]string
	if err := json.Unmarshal(out, &rows); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentifierParse, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: no rows returned", ErrIdentifierParse)
	}

	value, ok := rows[0][field]
	if !ok || value == "" {
		return "", fmt.Errorf("%w: no %s in output", ErrIdentifierParse, field)
	}
	return value, nil
}
