package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
)

// logStep is the percentage granularity of progress log lines.
const logStep = 10

// progress renders download percentages as a bar on a terminal and as
// periodic log lines otherwise. Nothing is shown until the first update, so
// a cached install prints nothing.
type progress struct {
	tty    bool
	logger logrus.FieldLogger

	bar    *pterm.ProgressbarPrinter
	logged int
}

func newProgress(tty bool, logger logrus.FieldLogger) *progress {
	return &progress{tty: tty, logger: logger, logged: -1}
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Update records a new completion percentage.
func (p *progress) Update(percent int) {
	if p.tty {
		p.updateBar(percent)
		return
	}

	step := percent / logStep * logStep
	if step <= p.logged {
		return
	}
	p.logged = step
	p.logger.WithField("percent", step).Info("downloading osquery")
}

func (p *progress) updateBar(percent int) {
	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle("Downloading osquery").
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			p.tty = false
			p.Update(percent)
			return
		}
		p.bar = bar
	}
	if delta := percent - p.bar.Current; delta > 0 {
		p.bar.Add(delta)
	}
}

// Stop clears the bar if one was shown.
func (p *progress) Stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}
