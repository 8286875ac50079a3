package binary

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedPlatform     = errors.New("unsupported platform")
	ErrDownload                = errors.New("download failed")
	ErrChecksumMismatch        = errors.New("checksum mismatch")
	ErrBinaryNotFoundInArchive = errors.New("binary not found in archive")
	ErrBundleNotFoundInPackage = errors.New("bundle not found in package")
	ErrExternalTool            = errors.New("external tool failed")
	ErrPermission              = errors.New("cannot make binary executable")
)

// HTTPError is returned when the release server answers with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

func (e *HTTPError) Is(target error) bool { return target == ErrDownload }

// ChecksumMismatchError carries both digests for diagnostics.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s:\n  expected: %s\n  actual:   %s", e.Path, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// EntryNotFoundError reports a completed archive walk without a match.
type EntryNotFoundError struct {
	Archive string
	Want    string
	Scanned int
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in %s (%d entries scanned)", e.Want, e.Archive, e.Scanned)
}

func (e *EntryNotFoundError) Is(target error) bool { return target == ErrBinaryNotFoundInArchive }

// ToolError reports a non-zero exit from an external utility.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

func (e *ToolError) Is(target error) bool { return target == ErrExternalTool }
