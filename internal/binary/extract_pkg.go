package binary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const pkgutilTool = "pkgutil"

// pkgExtractor expands a macOS installer package and installs the whole
// osquery.app bundle. The bundle is copied with cp -R so symlinks and
// extended attributes survive and the code signature stays valid.
type pkgExtractor struct {
	expander Expander
	logger   logrus.FieldLogger
}

func (e *pkgExtractor) Extract(ctx context.Context, archivePath string, d *Descriptor, layout Layout) error {
	if layout.BundlePath == "" {
		return fmt.Errorf("pkg install needs a bundle layout")
	}

	expandDir := layout.ExpandDir()
	if err := os.RemoveAll(expandDir); err != nil {
		return fmt.Errorf("remove stale expand dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(expandDir); err != nil {
			e.logger.WithError(err).WithField("path", expandDir).Warn("failed to remove expand dir")
		}
	}()

	e.logger.WithField("path", archivePath).Debug("expanding package")
	if err := e.run(ctx, pkgutilTool, "--expand-full", archivePath, expandDir); err != nil {
		return err
	}

	src := filepath.Join(expandDir, "Payload", filepath.FromSlash(bundleSource(d)))
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrBundleNotFoundInPackage, src)
	}

	if err := os.MkdirAll(layout.BinDir, 0755); err != nil {
		return fmt.Errorf("create bin dir: %w", err)
	}

	staging := stagingPath(layout.BundlePath)
	if err := e.run(ctx, "cp", "-R", src, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}

	if err := os.RemoveAll(layout.BundlePath); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("remove previous bundle: %w", err)
	}
	if err := os.Rename(staging, layout.BundlePath); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("move bundle into place: %w", err)
	}

	e.logger.WithField("path", layout.BundlePath).Debug("installed bundle")
	return nil
}

func (e *pkgExtractor) run(ctx context.Context, tool string, args ...string) error {
	res, err := e.expander.Run(ctx, tool, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", ErrExternalTool, tool, err)
	}
	if res.Code != 0 {
		return &ToolError{Tool: tool, ExitCode: res.Code, Stderr: strings.TrimSpace(string(res.Stderr))}
	}
	return nil
}

// bundleSource is the osquery.app directory inside the package payload,
// derived from the executable path by cutting at the .app component.
func bundleSource(d *Descriptor) string {
	parts := strings.Split(d.BinaryPath, "/")
	for i, p := range parts {
		if strings.HasSuffix(p, ".app") {
			return strings.Join(parts[:i+1], "/")
		}
	}
	return "opt/osquery/lib/" + bundleName
}
