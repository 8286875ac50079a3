//go:build windows

package binary

import (
	"os"
)

// isExecutable is true for any regular file; Windows has no execute bit.
func isExecutable(path string, info os.FileInfo) bool {
	return true
}

// SetExecutable is a no-op on Windows.
func SetExecutable(path string) error {
	return nil
}
