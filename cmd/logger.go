package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// tuiLogPath receives log output while the viewer owns the terminal.
const tuiLogPath = "./logs/stixkit.log"

// newLogger builds the root logger. Output goes to stderr, or to tuiLogPath
// when toFile is set so the viewer's screen is not corrupted.
func newLogger(level string, toFile bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if toFile {
		if err := os.MkdirAll(filepath.Dir(tuiLogPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = []string{tuiLogPath}
		cfg.ErrorOutputPaths = []string{tuiLogPath}
	}

	return cfg.Build()
}
