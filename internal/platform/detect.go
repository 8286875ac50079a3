package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

var errNoInfo = errors.New("no platform info configured")

// RealDetector probes the running host.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect takes OS and architecture from the Go runtime, which is what the
// provisioned osqueryd must match, and everything else from gopsutil.
//
// A failed host lookup leaves the optional fields empty; only a cancelled
// context is an error. Whether the os/arch pair is supported is decided by
// the caller.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		Arch:    normalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
	}

	stat, err := host.InfoWithContext(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", ctxErr)
	}
	if err != nil && stat == nil {
		return info, nil
	}

	applyHostStat(info, stat)
	return info, nil
}

// applyHostStat copies the gopsutil host facts into info.
func applyHostStat(info *Info, stat *host.InfoStat) {
	info.Hostname = stat.Hostname
	info.KernelVersion = stat.KernelVersion

	if normalizeName(stat.VirtualizationRole) == "guest" {
		info.Virtualization = normalizeName(stat.VirtualizationSystem)
		if info.Virtualization == "" {
			info.Virtualization = "unknown"
		}
	}

	if info.OS != "linux" {
		return
	}
	if id := normalizeName(stat.Platform); id != "" {
		info.Platform = id
		info.Family = mapFamily(stat.PlatformFamily, id)
		info.Version = normalizeName(stat.PlatformVersion)
	}
}
