//go:build !windows

package binary

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// isExecutable requires both an execute bit in the mode and that the
// current user may actually execute the file.
func isExecutable(path string, info os.FileInfo) bool {
	if info.Mode().Perm()&0111 == 0 {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// SetExecutable sets mode 0755 on path.
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return nil
}
