package osquery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyprwatch/shadow/internal/command"
)

var versionRegex = regexp.MustCompile(`\d+\.\d+\.\d+`)

// ExtractVersion extracts the semantic version from osqueryd --version output.
func ExtractVersion(output string) (string, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return "", fmt.Errorf("no version found in output")
	}
	return match, nil
}

// ReadVersion runs osqueryd --version and returns the version it reports.
func ReadVersion(ctx context.Context, runner Runner, osquerydPath string) (string, error) {
	if runner == nil {
		runner = command.ExecRunner{}
	}

	res, err := runner.Run(ctx, osquerydPath, "--version")
	if err != nil {
		return "", fmt.Errorf("run osquery: %w", err)
	}
	if res.Code != 0 {
		return "", &QueryError{ExitCode: res.Code, Stderr: strings.TrimSpace(string(res.Stderr))}
	}

	// Some builds print the banner on stderr.
	return ExtractVersion(string(res.Stdout) + "\n" + string(res.Stderr))
}
