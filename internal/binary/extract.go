package binary

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/hyprwatch/shadow/internal/command"
	"github.com/hyprwatch/shadow/internal/logging"
)

// Extractor places the osqueryd executable (or, on darwin, its bundle) from
// a verified archive into the install layout.
type Extractor interface {
	Extract(ctx context.Context, archivePath string, d *Descriptor, layout Layout) error
}

// Expander runs the external utilities needed for installer packages.
// command.ExecRunner satisfies it.
type Expander interface {
	Run(ctx context.Context, name string, args ...string) (*command.ExitResult, error)
}

// NewExtractor returns the extraction strategy for kind. The expander is
// only used for ArchivePkg.
func NewExtractor(kind ArchiveKind, expander Expander, logger logrus.FieldLogger) (Extractor, error) {
	logger = logging.OrDiscard(logger)

	switch kind {
	case ArchiveTarGz:
		return &tarGzExtractor{logger: logger}, nil
	case ArchiveZip:
		return &zipExtractor{logger: logger}, nil
	case ArchivePkg:
		if expander == nil {
			expander = command.ExecRunner{}
		}
		return &pkgExtractor{expander: expander, logger: logger}, nil
	default:
		return nil, fmt.Errorf("no extractor for archive kind %d", int(kind))
	}
}

// offload runs fn on its own goroutine and waits for it or for ctx. On
// cancellation fn keeps running in the background, so it must leave the
// install either untouched or complete.
func offload(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// matchesEntry reports whether an archive entry name is the wanted binary.
// Names are compared slash-separated, as stored in archives.
func matchesEntry(name string, d *Descriptor) bool {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	want := strings.TrimPrefix(path.Clean("/"+d.BinaryPath), "/")
	return name == want || path.Base(name) == d.binaryName()
}

// binaryName is the file name matched against archive entries.
func (d *Descriptor) binaryName() string {
	if d.BinaryName != "" {
		return d.BinaryName
	}
	return path.Base(d.BinaryPath)
}

// stagingPath returns a fresh sibling of target that the final rename can
// move atomically.
func stagingPath(target string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"-"+uuid.NewString()+".partial")
}

// installFile streams r into a staging file next to target and renames it
// into place. The staging file is removed on any failure.
func installFile(r io.Reader, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create bin dir: %w", err)
	}

	staging := stagingPath(target)
	out, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(staging)
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	if err = os.Rename(staging, target); err != nil {
		return fmt.Errorf("move binary into place: %w", err)
	}
	return nil
}

type tarGzExtractor struct {
	logger logrus.FieldLogger
}

func (e *tarGzExtractor) Extract(ctx context.Context, archivePath string, d *Descriptor, layout Layout) error {
	return offload(ctx, func() error {
		return e.extract(archivePath, d, layout.BinaryPath)
	})
}

func (e *tarGzExtractor) extract(archivePath string, d *Descriptor, target string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	scanned := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return &EntryNotFoundError{Archive: filepath.Base(archivePath), Want: d.BinaryPath, Scanned: scanned}
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		scanned++

		// Symlinks and hard links named osqueryd are skipped; only the real
		// file carries the executable.
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if !matchesEntry(header.Name, d) {
			continue
		}

		e.logger.WithFields(logrus.Fields{"entry": header.Name, "path": target}).Debug("extracting binary")
		return installFile(tr, target)
	}
}

type zipExtractor struct {
	logger logrus.FieldLogger
}

func (e *zipExtractor) Extract(ctx context.Context, archivePath string, d *Descriptor, layout Layout) error {
	return offload(ctx, func() error {
		return e.extract(archivePath, d, layout.BinaryPath)
	})
}

func (e *zipExtractor) extract(archivePath string, d *Descriptor, target string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for i := range zr.File {
		entry := zr.File[i]
		if entry.FileInfo().IsDir() || !matchesEntry(entry.Name, d) {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}
		e.logger.WithFields(logrus.Fields{"entry": entry.Name, "path": target}).Debug("extracting binary")
		err = installFile(rc, target)
		rc.Close()
		return err
	}

	return &EntryNotFoundError{Archive: filepath.Base(archivePath), Want: d.BinaryPath, Scanned: len(zr.File)}
}
