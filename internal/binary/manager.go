package binary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyprwatch/shadow/internal/logging"
	"github.com/hyprwatch/shadow/internal/platform"
	"github.com/hyprwatch/shadow/internal/transaction"
)

// Manager provisions the pinned osqueryd release into a data directory.
type Manager struct {
	layout     Layout
	descriptor *Descriptor
	releaseURL string
	skipVerify bool

	downloader *Downloader
	verifier   *Verifier
	extractor  Extractor

	logger  logrus.FieldLogger
	onState func(State)
	state   State
}

// Config holds configuration for the binary manager
type Config struct {
	// DataDir is the root shadow directory. Required.
	DataDir string
	// PlatformInfo selects the release asset. Required.
	PlatformInfo *platform.Info
	// GOOS selects the install layout; defaults to PlatformInfo.OS.
	GOOS string
	// ReleaseURL overrides DefaultReleaseURL.
	ReleaseURL string
	// SkipVerify bypasses the SHA-256 check. Operator use only.
	SkipVerify bool
	// HTTPClient is used for downloads; nil selects a default client.
	HTTPClient *http.Client
	// Progress receives download percentages.
	Progress ProgressFunc
	// Expander runs pkgutil and cp for installer packages.
	Expander Expander
	// Extractor replaces the strategy chosen from the descriptor.
	Extractor Extractor
	Logger    logrus.FieldLogger
	// OnState observes every state transition.
	OnState func(State)
}

// NewManager resolves the descriptor for the platform and prepares the
// pipeline. An unsupported platform fails here.
func NewManager(config Config) (*Manager, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("DataDir is required")
	}
	if config.PlatformInfo == nil {
		return nil, fmt.Errorf("PlatformInfo is required")
	}

	descriptor, err := Resolve(config.PlatformInfo)
	if err != nil {
		return nil, err
	}

	goos := config.GOOS
	if goos == "" {
		goos = config.PlatformInfo.OS
	}

	logger := logging.OrDiscard(config.Logger)

	extractor := config.Extractor
	if extractor == nil {
		extractor, err = NewExtractor(descriptor.Kind, config.Expander, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Manager{
		layout:     LayoutFor(config.DataDir, goos),
		descriptor: descriptor,
		releaseURL: config.ReleaseURL,
		skipVerify: config.SkipVerify,
		downloader: NewDownloader(config.HTTPClient).WithProgress(config.Progress),
		verifier:   NewVerifier(),
		extractor:  extractor,
		logger:     logger,
		onState:    config.OnState,
		state:      StateNotChecked,
	}, nil
}

// BinaryPath returns the executable location, whether or not it exists yet.
func (m *Manager) BinaryPath() string {
	return m.layout.BinaryPath
}

// Layout returns the install layout.
func (m *Manager) Layout() Layout {
	return m.layout
}

// Descriptor returns the resolved release asset.
func (m *Manager) Descriptor() *Descriptor {
	return m.descriptor
}

// State returns the last state entered.
func (m *Manager) State() State {
	return m.state
}

// IsInstalled reports whether the binary exists as a regular file that the
// current user can execute. A file without its execute bit is not installed.
func (m *Manager) IsInstalled() (bool, error) {
	return IsExecutableFile(m.layout.BinaryPath)
}

// IsExecutableFile reports whether path is a regular file the current user
// can execute. A missing path is not an error.
func IsExecutableFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat binary: %w", err)
	}

	if !info.Mode().IsRegular() {
		return false, nil
	}

	return isExecutable(path, info), nil
}

// EnsureInstalled makes the pinned osqueryd available, downloading it only
// when IsInstalled is false. Temporary files are removed on every path.
func (m *Manager) EnsureInstalled(ctx context.Context) (result *InstallResult, err error) {
	start := time.Now()
	m.setState(StateNotChecked)

	defer func() {
		if err != nil {
			m.setState(StateFailed)
		}
	}()

	installed, err := m.IsInstalled()
	if err != nil {
		return nil, fmt.Errorf("check install: %w", err)
	}
	if installed {
		return m.cached(start), nil
	}

	lock, err := transaction.AcquireLock(ctx, m.layout.DataDir)
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			m.logger.WithError(relErr).Warn("failed to release data dir lock")
		}
	}()

	// Another process may have finished between the check and the lock.
	if installed, err = m.IsInstalled(); err != nil {
		return nil, fmt.Errorf("check install: %w", err)
	} else if installed {
		return m.cached(start), nil
	}

	archivePath := m.layout.DownloadPath(m.descriptor)
	defer m.cleanup(archivePath)

	m.setState(StateDownloading)
	url := DownloadURL(m.releaseURL, m.descriptor)
	m.logger.WithFields(logrus.Fields{"url": url, "path": archivePath}).Info("downloading osquery")
	if err = m.downloader.Download(ctx, url, archivePath); err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}

	verified := VerificationSkipped
	if m.skipVerify {
		m.logger.WithFields(logrus.Fields{"path": archivePath, "expected": m.descriptor.SHA256}).
			Warn("checksum verification skipped")
	} else {
		m.setState(StateVerifying)
		res, verr := m.verifier.Verify(archivePath, m.descriptor.SHA256)
		if verr != nil {
			var mismatch *ChecksumMismatchError
			if errors.As(verr, &mismatch) {
				m.logger.WithFields(logrus.Fields{"expected": mismatch.Expected, "actual": mismatch.Actual}).
					Error("checksum mismatch")
			}
			return nil, fmt.Errorf("verify archive: %w", verr)
		}
		verified = res.Method
	}

	m.setState(StateExtracting)
	m.logger.WithFields(logrus.Fields{"kind": m.descriptor.Kind.String(), "path": m.layout.BinaryPath}).Debug("extracting")
	if err = m.extractor.Extract(ctx, archivePath, m.descriptor, m.layout); err != nil {
		return nil, fmt.Errorf("extract %s: %w", m.descriptor.Kind, err)
	}

	m.setState(StateFinalizing)
	if err = SetExecutable(m.layout.BinaryPath); err != nil {
		return nil, err
	}
	if installed, err = m.IsInstalled(); err != nil {
		return nil, fmt.Errorf("check install: %w", err)
	} else if !installed {
		return nil, fmt.Errorf("%w: %s", ErrPermission, m.layout.BinaryPath)
	}

	m.setState(StateCached)
	return &InstallResult{
		Path:       m.layout.BinaryPath,
		Verified:   verified,
		Descriptor: m.descriptor,
		Duration:   time.Since(start),
	}, nil
}

func (m *Manager) cached(start time.Time) *InstallResult {
	m.setState(StateCached)
	return &InstallResult{
		Path:       m.layout.BinaryPath,
		Cached:     true,
		Verified:   VerificationNone,
		Descriptor: m.descriptor,
		Duration:   time.Since(start),
	}
}

func (m *Manager) setState(s State) {
	m.state = s
	m.logger.WithField("state", s.String()).Debug("provisioning state")
	if m.onState != nil {
		m.onState(s)
	}
}

// cleanup removes temporary artifacts. Failures are logged, never returned.
func (m *Manager) cleanup(archivePath string) {
	for _, p := range []string{archivePath, m.layout.ExpandDir()} {
		if err := os.RemoveAll(p); err != nil {
			m.logger.WithError(err).WithField("path", p).Warn("failed to remove temporary file")
		}
	}

	entries, err := os.ReadDir(m.layout.TmpDir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.WithError(err).WithField("path", m.layout.TmpDir).Warn("failed to read temp dir")
		}
		return
	}
	if len(entries) == 0 {
		if err := os.Remove(m.layout.TmpDir); err != nil {
			m.logger.WithError(err).WithField("path", m.layout.TmpDir).Warn("failed to remove temp dir")
		}
	}
}
