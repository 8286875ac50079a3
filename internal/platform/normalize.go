package platform

import (
	"strings"
)

// familyMap maps distribution names to their canonical family names.
// gopsutil is not consistent about reporting the family versus the ID.
var familyMap = map[string]string{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"linuxmint": FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"amazon":    FamilyRHEL,
	"fedora":    FamilyFedora,
	"suse":      FamilySUSE,
	"opensuse":  FamilySUSE,
	"sles":      FamilySUSE,
	"arch":      FamilyArch,
	"manjaro":   FamilyArch,
	"alpine":    FamilyAlpine,
}

// normalizeArch folds the common uname-style aliases into GOARCH names.
// Unknown values are passed through lowercased.
func normalizeArch(arch string) string {
	switch a := normalizeName(arch); a {
	case "amd64", "x86_64", "x64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return a
	}
}

// NormalizeArch is the exported form of normalizeArch for callers that
// build an Info by hand.
func NormalizeArch(arch string) string {
	return normalizeArch(arch)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily resolves the canonical family from the reported family, falling
// back to the distro ID when the family is empty or unrecognized.
func mapFamily(family, id string) string {
	for _, name := range []string{family, id} {
		if canonical, ok := familyMap[normalizeName(name)]; ok {
			return canonical
		}
	}
	return FamilyUnknown
}
