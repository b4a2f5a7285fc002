package cmd

import (
	"context"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/Ashfaaq98/stixkit/internal/ui"
)

// Smallest terminal the report viewer is usable in.
const (
	minTUICols = 60
	minTUIRows = 15
)

func envTerminalSize() (int, int, bool) {
	c, err1 := strconv.Atoi(os.Getenv("COLUMNS"))
	r, err2 := strconv.Atoi(os.Getenv("LINES"))
	if err1 != nil || err2 != nil || c <= 0 || r <= 0 {
		return 0, 0, false
	}
	return c, r, true
}

// tuiUsable reports whether the viewer can take over the terminal.
func tuiUsable(force bool) bool {
	if force {
		return true
	}
	cols, rows := terminalSize()
	return cols >= minTUICols && rows >= minTUIRows
}

// showModel runs the report viewer. Logs go to a file while it is open.
func showModel(ctx context.Context, model ui.Model, cfg Config) error {
	logger, err := newLogger(cfg.Log.Level, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("opening viewer", zap.String("title", model.Title))
	return ui.NewViewer(model, cfg.UI.Theme, logger).Run(ctx)
}
