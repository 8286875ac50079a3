package binary

import (
	"time"
)

// ArchiveKind selects the extraction strategy for a release artifact. It is
// always taken from the Descriptor and never inferred from file contents.
type ArchiveKind int

const (
	// ArchiveTarGz is a gzip-compressed tarball (Linux releases).
	ArchiveTarGz ArchiveKind = iota + 1
	// ArchivePkg is a macOS installer package expanded with pkgutil.
	ArchivePkg
	// ArchiveZip is a zip archive (Windows releases).
	ArchiveZip
)

// String returns the string representation of the archive kind
func (k ArchiveKind) String() string {
	switch k {
	case ArchiveTarGz:
		return "tar.gz"
	case ArchivePkg:
		return "pkg"
	case ArchiveZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Descriptor holds the pinned download, verification and extraction
// parameters for one supported platform.
type Descriptor struct {
	// Filename is the release asset name.
	Filename string
	// SHA256 is the expected lower-case hex digest of the asset.
	SHA256 string
	// Kind selects the extraction strategy.
	Kind ArchiveKind
	// BinaryPath is the path of osqueryd inside the archive.
	BinaryPath string
	// BinaryName is the file name matched against archive entries.
	BinaryName string
}

// VerificationMethod indicates how a download was verified
type VerificationMethod int

const (
	// VerificationNone means verification has not run yet.
	VerificationNone VerificationMethod = iota
	// VerificationSkipped means the operator bypassed verification and no
	// digest was computed.
	VerificationSkipped
	// VerificationSHA256 means the SHA-256 digest matched the pinned value.
	VerificationSHA256
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationNone:
		return "none"
	case VerificationSkipped:
		return "skipped"
	case VerificationSHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// VerificationResult contains the outcome of a verification attempt
type VerificationResult struct {
	Method VerificationMethod
	Digest string
}

// State is a step of the provisioning state machine.
type State int

const (
	StateNotChecked State = iota
	StateCached
	StateDownloading
	StateVerifying
	StateExtracting
	StateFinalizing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotChecked:
		return "not_checked"
	case StateCached:
		return "cached"
	case StateDownloading:
		return "downloading"
	case StateVerifying:
		return "verifying"
	case StateExtracting:
		return "extracting"
	case StateFinalizing:
		return "finalizing_permissions"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallResult describes a completed EnsureInstalled call.
type InstallResult struct {
	// Path is the executable to run.
	Path string
	// Cached is true when an existing install was reused and nothing was
	// downloaded.
	Cached bool
	// Verified is VerificationNone for cached installs.
	Verified   VerificationMethod
	Descriptor *Descriptor
	Duration   time.Duration
}
