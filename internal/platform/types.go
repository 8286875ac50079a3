// Package platform identifies the host the agent is running on.
//
// It reports the operating system and CPU architecture (normalized to Go's
// GOOS/GOARCH vocabulary), the hostname and kernel, whether the host is a
// virtualization guest and, on Linux, the distribution. The os/arch pair
// selects the osquery release to provision; the whole Info is exposed
// read-only to Lua configuration files.
package platform

import "context"

// Linux distribution families.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux, Amazon Linux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info describes the host.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // "amd64", "arm64" for known aliases, lowercased GOARCH otherwise
	ArchRaw string // original GOARCH

	Hostname      string
	KernelVersion string

	// Virtualization is the hypervisor or container runtime ("kvm",
	// "docker", ...) when the host is a guest, empty otherwise.
	Virtualization string

	Platform string // distro ID (Linux only, e.g., "ubuntu")
	Family   string // canonical family (e.g., "debian")
	Version  string // distro version (Linux only, e.g., "22.04")
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// String returns the "os/arch" pair.
func (i *Info) String() string {
	return i.OS + "/" + i.Arch
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != "linux" || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsVirtualGuest reports whether the host runs under a hypervisor or in a
// container. Such hosts often share a hardware UUID with their clones.
func (i *Info) IsVirtualGuest() bool {
	return i.Virtualization != ""
}

func (i *Info) IsLinux() bool { return i.OS == "linux" }
func (i *Info) IsMacOS() bool { return i.OS == "darwin" }
func (i *Info) IsWindows() bool { return i.OS == "windows" }
func (i *Info) IsAMD64() bool { return i.Arch == "amd64" }
func (i *Info) IsARM64() bool { return i.Arch == "arm64" }

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It lets callers inject a platform
// identity instead of probing the running host.
type StaticDetector struct {
	Info *Info
}

// Detect returns a copy of the configured Info.
func (d StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if d.Info == nil {
		return nil, errNoInfo
	}
	info := *d.Info
	return &info, nil
}
