package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.ArchRaw)
	assert.Equal(t, normalizeArch(runtime.GOARCH), info.Arch)

	if runtime.GOOS == "linux" {
		// Distro lookup may fail in minimal containers; when it works the
		// family must be set too.
		if info.Platform != "" {
			assert.NotEmpty(t, info.Family)
		}
	} else {
		assert.Empty(t, info.Platform)
		assert.Nil(t, info.GetDistro())
	}
}

func TestRealDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector().Detect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyHostStat(t *testing.T) {
	tests := []struct {
		name string
		os   string
		stat host.InfoStat
		want Info
	}{
		{
			name: "linux_guest",
			os:   "linux",
			stat: host.InfoStat{
				Hostname:             "web-1",
				KernelVersion:        "6.8.0-45-generic",
				Platform:             "Ubuntu",
				PlatformFamily:       "debian",
				PlatformVersion:      "24.04",
				VirtualizationSystem: "kvm",
				VirtualizationRole:   "guest",
			},
			want: Info{
				OS:             "linux",
				Hostname:       "web-1",
				KernelVersion:  "6.8.0-45-generic",
				Virtualization: "kvm",
				Platform:       "ubuntu",
				Family:         FamilyDebian,
				Version:        "24.04",
			},
		},
		{
			name: "linux_host_without_distro",
			os:   "linux",
			stat: host.InfoStat{Hostname: "bare", VirtualizationSystem: "kvm", VirtualizationRole: "host"},
			want: Info{OS: "linux", Hostname: "bare"},
		},
		{
			name: "guest_with_unknown_system",
			os:   "linux",
			stat: host.InfoStat{VirtualizationRole: "guest"},
			want: Info{OS: "linux", Virtualization: "unknown"},
		},
		{
			name: "darwin_ignores_distro",
			os:   "darwin",
			stat: host.InfoStat{Hostname: "mac", Platform: "darwin", PlatformFamily: "Standalone Workstation", PlatformVersion: "15.1"},
			want: Info{OS: "darwin", Hostname: "mac"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &Info{OS: tt.os}
			applyHostStat(info, &tt.stat)
			assert.Equal(t, tt.want, *info)
		})
	}
}

func TestStaticDetector(t *testing.T) {
	in := &Info{OS: "linux", Arch: "arm64"}
	info, err := StaticDetector{Info: in}.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "linux/arm64", info.String())

	info.OS = "windows"
	assert.Equal(t, "linux", in.OS, "Detect must return a copy")

	_, err = StaticDetector{}.Detect(context.Background())
	assert.Error(t, err)
}

func TestInfo_IsVirtualGuest(t *testing.T) {
	assert.True(t, (&Info{Virtualization: "docker"}).IsVirtualGuest())
	assert.False(t, (&Info{}).IsVirtualGuest())
}

func TestInfo_GetDistro(t *testing.T) {
	linux := &Info{OS: "linux", Platform: "ubuntu", Family: FamilyDebian, Version: "22.04"}
	require.NotNil(t, linux.GetDistro())
	assert.Equal(t, "ubuntu", linux.GetDistro().ID)

	assert.Nil(t, (&Info{OS: "linux"}).GetDistro())
	assert.Nil(t, (&Info{OS: "darwin", Platform: "ubuntu"}).GetDistro())
}
