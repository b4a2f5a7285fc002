package batch

import (
	"sync"

	"go.uber.org/zap"
)

// Progress observes a batch as it runs. It never affects results.
type Progress interface {
	Start(total int)
	Advance(path string, err error)
	Finish()
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Start(int)             {}
func (NopProgress) Advance(string, error) {}
func (NopProgress) Finish()               {}

// LogProgress reports progress through a zap logger: every file at debug
// level and each tenth of the batch at info level.
type LogProgress struct {
	logger *zap.Logger

	mu     sync.Mutex
	total  int
	done   int
	failed int
	step   int
}

// NewLogProgress creates a LogProgress writing to logger.
func NewLogProgress(logger *zap.Logger) *LogProgress {
	return &LogProgress{logger: logger}
}

func (lp *LogProgress) Start(total int) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.total, lp.done, lp.failed = total, 0, 0
	lp.step = total / 10
	if lp.step == 0 {
		lp.step = 1
	}
	lp.logger.Info("processing files", zap.Int("total", total))
}

func (lp *LogProgress) Advance(path string, err error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.done++
	if err != nil {
		lp.failed++
	}
	lp.logger.Debug("file done", zap.String("path", path), zap.Int("done", lp.done), zap.Int("total", lp.total))
	if lp.done%lp.step == 0 || lp.done == lp.total {
		lp.logger.Info("progress", zap.Int("done", lp.done), zap.Int("total", lp.total), zap.Int("failed", lp.failed))
	}
}

func (lp *LogProgress) Finish() {}
