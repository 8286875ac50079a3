package binary

import (
	"path/filepath"
)

const (
	binDirName    = "bin"
	tmpDirName    = "tmp"
	bundleName    = "osquery.app"
	pkgExpandName = "pkg_expand"
)

// Layout describes where an install lives under the data directory. It is
// used both for the idempotency check and as the extraction destination.
type Layout struct {
	DataDir string
	BinDir  string
	TmpDir  string
	// BinaryPath is the executable checked by IsInstalled and returned to
	// callers.
	BinaryPath string
	// BundlePath is the osquery.app directory on darwin and empty elsewhere.
	BundlePath string
}

// LayoutFor computes the install layout for goos. On darwin the whole
// osquery.app bundle is kept so its code signature stays valid.
func LayoutFor(dataDir, goos string) Layout {
	l := Layout{
		DataDir: dataDir,
		BinDir:  filepath.Join(dataDir, binDirName),
		TmpDir:  filepath.Join(dataDir, tmpDirName),
	}

	switch goos {
	case "windows":
		l.BinaryPath = filepath.Join(l.BinDir, "osqueryd.exe")
	case "darwin":
		l.BundlePath = filepath.Join(l.BinDir, bundleName)
		l.BinaryPath = filepath.Join(l.BundlePath, "Contents", "MacOS", "osqueryd")
	default:
		l.BinaryPath = filepath.Join(l.BinDir, "osqueryd")
	}

	return l
}

// DownloadPath is the temporary location of the release asset.
func (l Layout) DownloadPath(d *Descriptor) string {
	return filepath.Join(l.TmpDir, d.Filename)
}

// ExpandDir is the scratch directory used by pkgutil --expand-full.
func (l Layout) ExpandDir() string {
	return filepath.Join(l.TmpDir, pkgExpandName)
}
