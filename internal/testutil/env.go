// Package testutil provides utilities for testing shadow in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// agentEnv lists every variable the agent reads. SetupTestEnv clears them so
// a developer's shell cannot leak tokens or paths into a test.
var agentEnv = []string{
	"SHADOW_ORG_TOKEN",
	"SHADOW_SERVER_HOST",
	"SHADOW_CA_CERT",
	"SHADOW_DATA_DIR",
	"SHADOW_CONFIG",
	"SHADOW_VERBOSE",
	"SHADOW_HOST_IDENTIFIER",
	"OSQUERYD_PATH",
	"OSQUERY_ENROLL_SECRET",
}

// SetupTestEnv isolates a test from the host: every agent variable is
// unset, SHADOW_DATA_DIR points at a fresh temp directory and HOME is
// redirected so default data dirs resolve under it.
//
// The directories are removed by t.TempDir, so callers don't need to clean
// up. It returns the data directory.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	for _, name := range agentEnv {
		// Setenv registers the restore; the variable must then be absent,
		// since an empty value still counts as set for flag parsing.
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("unset %s: %v", name, err)
		}
	}

	dataDir := filepath.Join(tmpDir, "data")
	home := filepath.Join(tmpDir, "home")

	t.Setenv("SHADOW_DATA_DIR", dataDir)
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	for _, dir := range []string{dataDir, home} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return dataDir
}
