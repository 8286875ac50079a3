package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/hyprwatch/shadow/internal/binary"
	"github.com/hyprwatch/shadow/internal/config"
	"github.com/hyprwatch/shadow/internal/enroll"
	"github.com/hyprwatch/shadow/internal/logging"
	"github.com/hyprwatch/shadow/internal/osquery"
	"github.com/hyprwatch/shadow/internal/platform"
)

const (
	flagOrgToken            = "org-token"
	flagServer              = "server"
	flagCACert              = "ca-cert"
	flagDataDir             = "data-dir"
	flagOsquerydPath        = "osqueryd-path"
	flagConfig              = "config"
	flagVerbose             = "verbose"
	flagDistributedInterval = "distributed-interval"
	flagHostIdentifier      = "host-identifier"
	flagSkipVerify          = "skip-verify"
)

// flagSource is the part of *cli.Context that config loading reads.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
	Bool(name string) bool
}

// osquerydSource describes where the running osqueryd came from.
type osquerydSource string

const (
	sourceUser       osquerydSource = "user-provided"
	sourceCached     osquerydSource = "cached"
	sourceDownloaded osquerydSource = "downloaded"
)

func runAgent(c *cli.Context) error {
	logger := logging.New(os.Stderr, c.Bool(flagVerbose))

	// Signals cancel setup. Once osqueryd runs, Supervise forwards them
	// to the child instead.
	ctx, stopSignals := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	detector := platform.NewDetector()
	info, err := detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	cfg, err := loadConfig(ctx, c, platform.StaticDetector{Info: info}, logger)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}
	hintInstanceMode(logger, info, mode)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	printHeader(cfg, info)

	osquerydPath, source, err := resolveOsqueryd(ctx, cfg, info, logger)
	if err != nil {
		return err
	}

	if err := osquery.EnsureLogDir(cfg.DataDir); err != nil {
		return err
	}

	hostID, err := osquery.ReadHostIdentifier(ctx, nil, osquerydPath, mode, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("read host identifier: %w", err)
	}

	printHost(osquerydPath, source, hostID, mode)

	client, err := enroll.NewClient(enroll.Options{
		Server:     cfg.Server,
		CACertPath: cfg.CACertPath,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	printStep("Enrolling with server...")
	secret, err := client.Enroll(ctx, hostID, cfg.OrgToken)
	if err != nil {
		return err
	}
	printSuccess("Enrolled successfully")

	stopSignals()

	opts := osquery.LaunchOptions{
		OsquerydPath:        osquerydPath,
		Server:              cfg.Server,
		DataDir:             cfg.DataDir,
		CACertPath:          cfg.CACertPath,
		SystemCACerts:       osquery.DefaultSystemCACerts(),
		EnrollSecret:        secret,
		HostIdentifier:      mode,
		DistributedInterval: cfg.DistributedInterval,
		Verbose:             cfg.Verbose,
	}

	printStep("Starting osqueryd...")
	logger.WithField("path", osquerydPath).Debug("launching osqueryd")

	if err := osquery.Supervise(c.Context, osquery.Command(c.Context, opts)); err != nil {
		var childErr *osquery.ChildExitError
		if errors.As(err, &childErr) {
			return cli.Exit(childErr.Error(), childErr.Code)
		}
		return err
	}
	return nil
}

// loadConfig layers built-in defaults, the Lua config file and flags, then
// validates the result.
func loadConfig(ctx context.Context, flags flagSource, detector platform.Detector, logger logrus.FieldLogger) (*config.Config, error) {
	cfg := config.Default()
	if flags.IsSet(flagDataDir) {
		cfg.DataDir = flags.String(flagDataDir)
	}

	path := flags.String(flagConfig)
	required := path != ""
	if !required {
		path = filepath.Join(cfg.DataDir, config.DefaultConfigFileName)
	}

	file, err := config.NewParser(detector).WithLogger(logger).LoadFile(ctx, path, required)
	if err != nil {
		return nil, errors.New(config.FormatError(err, flags.Bool(flagVerbose)))
	}
	if file != nil {
		logger.WithField("path", path).Debug("loaded config file")
	}
	cfg.ApplyFile(file)

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays every flag or environment variable that was set.
func applyFlags(cfg *config.Config, flags flagSource) {
	cfg.OrgToken = flags.String(flagOrgToken)
	cfg.SkipVerify = flags.Bool(flagSkipVerify)

	for name, dst := range map[string]*string{
		flagServer:         &cfg.Server,
		flagDataDir:        &cfg.DataDir,
		flagCACert:         &cfg.CACertPath,
		flagOsquerydPath:   &cfg.OsquerydPath,
		flagHostIdentifier: &cfg.HostIdentifier,
	} {
		if flags.IsSet(name) {
			*dst = flags.String(name)
		}
	}

	if flags.IsSet(flagDistributedInterval) {
		cfg.DistributedInterval = flags.Int(flagDistributedInterval)
	}
	if flags.IsSet(flagVerbose) {
		cfg.Verbose = flags.Bool(flagVerbose)
	}
}

// resolveOsqueryd returns the osqueryd to run. A configured path is used
// as-is after checking it; otherwise the pinned release is provisioned.
func resolveOsqueryd(ctx context.Context, cfg *config.Config, info *platform.Info, logger logrus.FieldLogger) (string, osquerydSource, error) {
	if cfg.OsquerydPath != "" {
		ok, err := binary.IsExecutableFile(cfg.OsquerydPath)
		if err != nil {
			return "", "", err
		}
		if !ok {
			return "", "", fmt.Errorf("osqueryd not found or not executable at %s", cfg.OsquerydPath)
		}
		checkVersion(ctx, cfg.OsquerydPath, logger)
		return cfg.OsquerydPath, sourceUser, nil
	}

	progress := newProgress(stdoutIsTerminal(), logger)
	defer progress.Stop()

	manager, err := binary.NewManager(binary.Config{
		DataDir:      cfg.DataDir,
		PlatformInfo: info,
		SkipVerify:   cfg.SkipVerify,
		Progress:     progress.Update,
		Logger:       logger,
	})
	if err != nil {
		return "", "", err
	}

	result, err := manager.EnsureInstalled(ctx)
	if err != nil {
		return "", "", fmt.Errorf("provision osquery %s: %w", binary.Version, err)
	}

	if result.Cached {
		return result.Path, sourceCached, nil
	}
	logger.WithFields(logrus.Fields{
		"path":     result.Path,
		"verified": result.Verified.String(),
		"duration": result.Duration.Round(time.Millisecond).String(),
	}).Info("osquery installed")
	return result.Path, sourceDownloaded, nil
}

// checkVersion warns when a user-provided osqueryd is not the pinned
// release. It never fails the run.
func checkVersion(ctx context.Context, path string, logger logrus.FieldLogger) {
	version, err := osquery.ReadVersion(ctx, nil, path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("cannot determine osqueryd version")
		return
	}
	if version != binary.Version {
		logger.WithFields(logrus.Fields{
			"path":     path,
			"expected": binary.Version,
			"actual":   version,
		}).Warn("osqueryd version differs from the pinned release")
	}
}

// hintInstanceMode warns when a guest host is identified by hardware UUID.
// Cloned VMs and containers often report the same UUID and would collide
// on the server.
func hintInstanceMode(logger logrus.FieldLogger, info *platform.Info, mode osquery.HostIdentifier) bool {
	if mode != osquery.HostIdentifierUUID || !info.IsVirtualGuest() {
		return false
	}
	logger.WithField("virtualization", info.Virtualization).
		Warn("virtual host identified by hardware uuid; consider --host-identifier instance")
	return true
}
