package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hyprwatch/shadow/internal/osquery"
)

// Config is the effective agent configuration.
type Config struct {
	// OrgToken authenticates enrollment. Flag or environment only.
	OrgToken string
	// Server is the bare host[:port] of the shadow server.
	Server string
	// DataDir holds the osquery install, database, logs and pidfile.
	DataDir string
	// CACertPath is an optional PEM CA for the server.
	CACertPath string
	// OsquerydPath skips provisioning when set.
	OsquerydPath string
	// HostIdentifier is "uuid" or "instance".
	HostIdentifier string
	// DistributedInterval is the distributed query poll period in seconds.
	DistributedInterval int
	Verbose             bool
	// SkipVerify bypasses the download digest check. Flag only.
	SkipVerify bool
}

// File is the subset of settings a Lua config file may carry. Nil fields
// were not set and leave the lower layer untouched.
type File struct {
	Server              *string
	DataDir             *string
	CACertPath          *string
	OsquerydPath        *string
	HostIdentifier      *string
	DistributedInterval *int
	Verbose             *bool
}

// Default returns the built-in configuration for this platform.
func Default() *Config {
	return &Config{
		Server:              DefaultServer,
		DataDir:             DefaultDataDir(),
		HostIdentifier:      DefaultHostIdentifier,
		DistributedInterval: DefaultDistributedInterval,
	}
}

// DefaultDataDir returns <user data dir>/shadow, falling back to a system
// location when no home directory is available.
func DefaultDataDir() string {
	return defaultDataDir(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func defaultDataDir(goos string, getenv func(string) string, home func() (string, error)) string {
	if dir := userDataDir(goos, getenv, home); dir != "" {
		return filepath.Join(dir, "shadow")
	}
	if goos == "windows" {
		return `C:\ProgramData\shadow`
	}
	return "/var/lib/shadow"
}

// userDataDir follows the per-user local data conventions of each OS.
func userDataDir(goos string, getenv func(string) string, home func() (string, error)) string {
	switch goos {
	case "windows":
		return getenv("LOCALAPPDATA")
	case "darwin":
		h, err := home()
		if err != nil || h == "" {
			return ""
		}
		return filepath.Join(h, "Library", "Application Support")
	default:
		if xdg := getenv("XDG_DATA_HOME"); filepath.IsAbs(xdg) {
			return xdg
		}
		h, err := home()
		if err != nil || h == "" {
			return ""
		}
		return filepath.Join(h, ".local", "share")
	}
}

// ApplyFile overlays the settings present in f.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Server != nil {
		c.Server = *f.Server
	}
	if f.DataDir != nil {
		c.DataDir = *f.DataDir
	}
	if f.CACertPath != nil {
		c.CACertPath = *f.CACertPath
	}
	if f.OsquerydPath != nil {
		c.OsquerydPath = *f.OsquerydPath
	}
	if f.HostIdentifier != nil {
		c.HostIdentifier = *f.HostIdentifier
	}
	if f.DistributedInterval != nil {
		c.DistributedInterval = *f.DistributedInterval
	}
	if f.Verbose != nil {
		c.Verbose = *f.Verbose
	}
}

// Mode returns the parsed host identifier mode.
func (c *Config) Mode() (osquery.HostIdentifier, error) {
	return osquery.ParseHostIdentifier(c.HostIdentifier)
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OrgToken) == "" {
		return &ValidationError{Field: "org_token", Message: "organization token is required"}
	}

	if err := validateServer(c.Server); err != nil {
		return &ValidationError{Field: "server", Message: err.Error()}
	}

	if c.DataDir == "" {
		return &ValidationError{Field: "data_dir", Message: "data directory cannot be empty"}
	}

	if c.DistributedInterval < 1 {
		return &ValidationError{
			Field:   "distributed_interval",
			Message: fmt.Sprintf("must be at least 1 second (got %d)", c.DistributedInterval),
		}
	}

	if _, err := c.Mode(); err != nil {
		return &ValidationError{Field: "host_identifier", Message: err.Error()}
	}

	if c.CACertPath != "" {
		f, err := os.Open(c.CACertPath)
		if err != nil {
			return &ValidationError{Field: "ca_cert", Message: fmt.Sprintf("cannot read CA certificate: %v", err)}
		}
		f.Close()
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// validateServer accepts a bare host or host:port. Schemes and paths are
// rejected because the endpoints are fixed.
func validateServer(server string) error {
	if strings.TrimSpace(server) == "" {
		return fmt.Errorf("server cannot be empty")
	}
	if strings.Contains(server, "://") {
		return fmt.Errorf("server must be a hostname without scheme (got %q)", server)
	}
	if strings.ContainsAny(server, "/?# \t") {
		return fmt.Errorf("server must not contain a path or whitespace (got %q)", server)
	}
	return nil
}
