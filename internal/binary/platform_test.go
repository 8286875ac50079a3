package binary

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyprwatch/shadow/internal/platform"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		os           string
		arch         string
		wantFilename string
		wantKind     ArchiveKind
		wantBinary   string
	}{
		{
			name:         "linux_amd64",
			os:           "linux",
			arch:         "amd64",
			wantFilename: "osquery-5.20.0_1.linux_x86_64.tar.gz",
			wantKind:     ArchiveTarGz,
			wantBinary:   "opt/osquery/bin/osqueryd",
		},
		{
			name:         "linux_x86_64_alias",
			os:           "linux",
			arch:         "x86_64",
			wantFilename: "osquery-5.20.0_1.linux_x86_64.tar.gz",
			wantKind:     ArchiveTarGz,
			wantBinary:   "opt/osquery/bin/osqueryd",
		},
		{
			name:         "linux_arm64",
			os:           "linux",
			arch:         "arm64",
			wantFilename: "osquery-5.20.0_1.linux_aarch64.tar.gz",
			wantKind:     ArchiveTarGz,
			wantBinary:   "opt/osquery/bin/osqueryd",
		},
		{
			name:         "darwin_amd64",
			os:           "darwin",
			arch:         "amd64",
			wantFilename: "osquery-5.20.0.pkg",
			wantKind:     ArchivePkg,
			wantBinary:   "opt/osquery/lib/osquery.app/Contents/MacOS/osqueryd",
		},
		{
			name:         "darwin_arm64_shares_universal_pkg",
			os:           "darwin",
			arch:         "arm64",
			wantFilename: "osquery-5.20.0.pkg",
			wantKind:     ArchivePkg,
			wantBinary:   "opt/osquery/lib/osquery.app/Contents/MacOS/osqueryd",
		},
		{
			name:         "windows_amd64",
			os:           "windows",
			arch:         "amd64",
			wantFilename: "osquery-5.20.0.windows_x86_64.zip",
			wantKind:     ArchiveZip,
			wantBinary:   "osqueryd/osqueryd.exe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(&platform.Info{OS: tt.os, Arch: tt.arch})
			require.NoError(t, err)
			assert.Equal(t, tt.wantFilename, d.Filename)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, tt.wantBinary, d.BinaryPath)
			assert.Len(t, d.SHA256, 64)
			assert.Equal(t, strings.ToLower(d.SHA256), d.SHA256)
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	tests := []struct {
		os   string
		arch string
	}{
		{"windows", "arm64"},
		{"linux", "386"},
		{"freebsd", "amd64"},
		{"linux", "riscv64"},
	}

	for _, tt := range tests {
		t.Run(tt.os+"_"+tt.arch, func(t *testing.T) {
			_, err := Resolve(&platform.Info{OS: tt.os, Arch: tt.arch})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
			assert.Contains(t, err.Error(), tt.os+"/"+tt.arch)
		})
	}
}

func TestResolve_ReturnsCopy(t *testing.T) {
	info := &platform.Info{OS: "linux", Arch: "amd64"}
	d, err := Resolve(info)
	require.NoError(t, err)
	d.SHA256 = "tampered"

	again, err := Resolve(info)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", again.SHA256)
}

func TestResolve_NilInfo(t *testing.T) {
	_, err := Resolve(nil)
	require.Error(t, err)
}

func TestDownloadURL(t *testing.T) {
	d := &Descriptor{Filename: "osquery-5.20.0_1.linux_x86_64.tar.gz"}

	assert.Equal(t,
		"https://github.com/osquery/osquery/releases/download/5.20.0/osquery-5.20.0_1.linux_x86_64.tar.gz",
		DownloadURL("", d))
	assert.Equal(t,
		"http://127.0.0.1:9999/releases/5.20.0/osquery-5.20.0_1.linux_x86_64.tar.gz",
		DownloadURL("http://127.0.0.1:9999/releases/", d))
}

func TestArchiveKindString(t *testing.T) {
	assert.Equal(t, "tar.gz", ArchiveTarGz.String())
	assert.Equal(t, "pkg", ArchivePkg.String())
	assert.Equal(t, "zip", ArchiveZip.String())
	assert.Equal(t, "unknown", ArchiveKind(0).String())
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateNotChecked:  "not_checked",
		StateCached:      "cached",
		StateDownloading: "downloading",
		StateVerifying:   "verifying",
		StateExtracting:  "extracting",
		StateFinalizing:  "finalizing_permissions",
		StateFailed:      "failed",
		State(42):        "unknown",
	}
	for s, want := range states {
		assert.Equal(t, want, s.String())
	}
}
