package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/hyprwatch/shadow/internal/config"
	"github.com/hyprwatch/shadow/internal/osquery"
	"github.com/hyprwatch/shadow/internal/platform"
)

// printHeader shows the version banner and the settings in effect.
func printHeader(cfg *config.Config, info *platform.Info) {
	pterm.DefaultSection.Printfln("Shadow Agent %s", Version)
	rows := [][]string{
		{"Server", cfg.Server},
		{"Data dir", cfg.DataDir},
		{"Platform", info.String()},
	}
	if info.Hostname != "" {
		rows = append(rows, []string{"Hostname", info.Hostname})
	}
	renderPairs(rows)
}

// printHost shows which osqueryd runs and the identity it reported.
func printHost(path string, source osquerydSource, hostID string, mode osquery.HostIdentifier) {
	renderPairs([][]string{
		{"osquery", fmt.Sprintf("%s (%s)", path, source)},
		{"Host ID", fmt.Sprintf("%s (%s)", hostID, mode)},
	})
	pterm.Println()
}

func renderPairs(rows [][]string) {
	data := make(pterm.TableData, 0, len(rows))
	for _, row := range rows {
		data = append(data, []string{pterm.FgCyan.Sprint(row[0] + ":"), row[1]})
	}
	_ = pterm.DefaultTable.WithBoxed(false).WithData(data).Render()
}

func printStep(msg string) {
	pterm.Info.Println(msg)
}

func printSuccess(msg string) {
	pterm.Success.Println(msg)
}
