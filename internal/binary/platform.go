package binary

import (
	"fmt"
	"strings"

	"github.com/hyprwatch/shadow/internal/platform"
)

// Version is the pinned osquery release. Changing it requires updating every
// digest in descriptors.
const Version = "5.20.0"

// DefaultReleaseURL is the GitHub release download prefix.
// Pattern: https://github.com/osquery/osquery/releases/download/{version}/{filename}
const DefaultReleaseURL = "https://github.com/osquery/osquery/releases/download"

type platformKey struct {
	os   string
	arch string
}

// descriptors maps each supported os/arch pair to its release asset.
// Digests are from https://github.com/osquery/osquery/releases/tag/5.20.0.
var descriptors = map[platformKey]Descriptor{
	{"linux", "amd64"}: {
		Filename:   "osquery-5.20.0_1.linux_x86_64.tar.gz",
		SHA256:     "4f0e4e23c864a72dcb20bf4661ea0d2719358c938ec342105a633cc732dc03c3",
		Kind:       ArchiveTarGz,
		BinaryPath: "opt/osquery/bin/osqueryd",
		BinaryName: "osqueryd",
	},
	{"linux", "arm64"}: {
		Filename:   "osquery-5.20.0_1.linux_aarch64.tar.gz",
		SHA256:     "cb8d942943c765ebd87c5a3b01fc09988c8ad31acf094207fc49e7acf88ec573",
		Kind:       ArchiveTarGz,
		BinaryPath: "opt/osquery/bin/osqueryd",
		BinaryName: "osqueryd",
	},
	// The macOS package is universal; both architectures share it.
	{"darwin", "amd64"}: darwinDescriptor,
	{"darwin", "arm64"}: darwinDescriptor,
	{"windows", "amd64"}: {
		Filename:   "osquery-5.20.0.windows_x86_64.zip",
		SHA256:     "af66cb90537c52459539141f183ae8abb3073f29089b5d1f68245381d80967e1",
		Kind:       ArchiveZip,
		BinaryPath: "osqueryd/osqueryd.exe",
		BinaryName: "osqueryd.exe",
	},
}

var darwinDescriptor = Descriptor{
	Filename:   "osquery-5.20.0.pkg",
	SHA256:     "569751a8bc4fdd3aba94071a4b840003066b2cff8e1b0ef9abf46c7a482173c0",
	Kind:       ArchivePkg,
	BinaryPath: "opt/osquery/lib/osquery.app/Contents/MacOS/osqueryd",
	BinaryName: "osqueryd",
}

// Resolve returns the descriptor for the given platform. There is no
// fallback: an unlisted os/arch pair is an ErrUnsupportedPlatform.
func Resolve(info *platform.Info) (*Descriptor, error) {
	if info == nil {
		return nil, fmt.Errorf("platform info is required")
	}

	key := platformKey{os: strings.ToLower(info.OS), arch: platform.NormalizeArch(info.Arch)}
	d, ok := descriptors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, info.OS, info.Arch)
	}
	return &d, nil
}

// DownloadURL builds the asset URL under baseURL (DefaultReleaseURL when empty).
func DownloadURL(baseURL string, d *Descriptor) string {
	if baseURL == "" {
		baseURL = DefaultReleaseURL
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), Version, d.Filename)
}
