package binary

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hyprwatch/shadow/internal/command"
)

// archiveEntry is one member of a test archive.
type archiveEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
	mode     int64
}

// buildTarGz returns the bytes of a gzip-compressed tarball with entries in
// the given order.
func buildTarGz(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		mode := e.mode
		if mode == 0 {
			mode = 0755
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: typeflag,
			Linkname: e.linkname,
			Mode:     mode,
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// buildZip returns the bytes of a zip archive. Names ending in "/" become
// directory entries.
func buildZip(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		if len(e.name) > 0 && e.name[len(e.name)-1] != '/' {
			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// linuxTarball is the minimal shape of the osquery Linux release.
func linuxTarball(t *testing.T, binary string) []byte {
	return buildTarGz(t, []archiveEntry{
		{name: "opt/osquery/", typeflag: tar.TypeDir},
		{name: "opt/osquery/share/man/man1/osqueryd.1", body: "man page"},
		{name: "usr/local/bin/osqueryd", typeflag: tar.TypeSymlink, linkname: "/opt/osquery/bin/osqueryd"},
		{name: "opt/osquery/bin/osqueryi", body: "shell"},
		{name: "opt/osquery/bin/osqueryd", body: binary},
	})
}

type mockExpander struct {
	mock.Mock
}

func (m *mockExpander) Run(ctx context.Context, name string, args ...string) (*command.ExitResult, error) {
	ret := m.Called(ctx, name, args)
	res, _ := ret.Get(0).(*command.ExitResult)
	return res, ret.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, archivePath string, d *Descriptor, layout Layout) error {
	return m.Called(ctx, archivePath, d, layout).Error(0)
}
