package main

import (
	"errors"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hyprwatch/shadow/internal/config"
	"github.com/hyprwatch/shadow/internal/logging"
	"github.com/hyprwatch/shadow/internal/osquery"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		logging.New(os.Stderr, false).Errorf("error: %v", err)
	}
	os.Exit(exitCode(err))
}

func newApp() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}

	return &cli.App{
		Name:    "shadow",
		Usage:   "Enroll with a Hyprwatch server and run osqueryd",
		Version: Version,
		Description: "Downloads and verifies the pinned osquery release when no osqueryd is given, " +
			"enrolls this host and supervises osqueryd until it exits.",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagOrgToken,
				Aliases: []string{"t"},
				Usage:   "Organization token for enrollment (required)",
				EnvVars: []string{"SHADOW_ORG_TOKEN"},
			},
			&cli.StringFlag{
				Name:    flagServer,
				Aliases: []string{"s"},
				Usage:   "Server hostname, optionally with :port",
				Value:   config.DefaultServer,
				EnvVars: []string{"SHADOW_SERVER_HOST"},
			},
			&cli.StringFlag{
				Name:    flagCACert,
				Usage:   "PEM CA certificate for the server",
				EnvVars: []string{"SHADOW_CA_CERT"},
			},
			&cli.StringFlag{
				Name:        flagDataDir,
				Aliases:     []string{"d"},
				Usage:       "Data directory for osquery, its database and logs",
				DefaultText: config.DefaultDataDir(),
				EnvVars:     []string{"SHADOW_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    flagOsquerydPath,
				Aliases: []string{"o"},
				Usage:   "Path to osqueryd (skips the download)",
				EnvVars: []string{"OSQUERYD_PATH"},
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "Lua config file (default <data-dir>/" + config.DefaultConfigFileName + " if present)",
				EnvVars: []string{"SHADOW_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    flagVerbose,
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
				EnvVars: []string{"SHADOW_VERBOSE"},
			},
			&cli.IntFlag{
				Name:  flagDistributedInterval,
				Usage: "Distributed query polling interval in seconds",
				Value: config.DefaultDistributedInterval,
			},
			&cli.StringFlag{
				Name:    flagHostIdentifier,
				Usage:   "Host identifier: 'uuid' (hardware UUID) or 'instance' (osquery instance id, for cloned VMs)",
				Value:   config.DefaultHostIdentifier,
				EnvVars: []string{"SHADOW_HOST_IDENTIFIER"},
			},
			&cli.BoolFlag{
				Name:   flagSkipVerify,
				Usage:  "Skip checksum verification of the osquery download (development only)",
				Hidden: true,
			},
		},
		Action: runAgent,
		// main reports errors and picks the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// exitCode maps a run error to the process exit status. A supervised
// osqueryd exit status is propagated; anything else is 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var childErr *osquery.ChildExitError
	if errors.As(err, &childErr) {
		return childErr.Code
	}

	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
