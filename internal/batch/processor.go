package batch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/store"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options controls a fix run.
type Options struct {
	Dir      string
	Patterns []string // matched case-sensitively against base names, default "*.json"
	Watch    bool
	Workers  int
	DryRun   bool
	Pipeline Pipeline
	Logger   *zap.Logger
	Progress Progress

	// SettleDelay is how long a watched file must stay quiet before it is
	// reprocessed. Defaults to 500ms.
	SettleDelay time.Duration
}

// Summary is the outcome of the initial pass over the directory.
type Summary struct {
	RunID     string
	Processed int
	Fixed     int
	Unchanged int
	Failed    int
	Errors    []*DocumentError
}

// Processor rewrites every matching document in a directory, optionally
// watching it for further changes.
type Processor struct {
	ledger store.Ledger
	bus    bus.Bus
	opts   Options
	logger *zap.Logger

	runID string

	mu      sync.Mutex
	written map[string][sha256.Size]byte // digest of the last bytes we wrote per path
	errs    []*DocumentError

	processed atomic.Int64
	fixed     atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64
}

// NewProcessor constructs a processor. ledger may be nil; b may be nil.
func NewProcessor(ledger store.Ledger, b bus.Bus, opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.json"}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Progress == nil {
		opts.Progress = NopProgress{}
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if b == nil {
		b = bus.NewNullBus(opts.Logger)
	}
	return &Processor{
		ledger:  ledger,
		bus:     b,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("component", "batch")),
		written: make(map[string][sha256.Size]byte),
	}
}

// Run processes the directory once and, in watch mode, keeps reprocessing
// changed files until ctx is cancelled. The returned summary covers the
// initial pass; per-document failures are reported in it rather than as an
// error.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	if p.ledger != nil {
		id, err := p.ledger.StartRun(ctx, store.Run{
			Command: "fix",
			Dir:     p.opts.Dir,
			DryRun:  p.opts.DryRun,
		})
		if err != nil {
			return Summary{}, err
		}
		p.runID = id
		defer p.finishRun()
	}

	if err := p.scanOnce(ctx); err != nil {
		return p.summary(), err
	}
	sum := p.summary()
	p.logger.Info("completed pass",
		zap.Int("processed", sum.Processed),
		zap.Int("fixed", sum.Fixed),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed),
		zap.Bool("dry_run", p.opts.DryRun))

	var err error
	if p.opts.Watch {
		err = p.watchLoop(ctx)
	}
	return sum, err
}

func (p *Processor) summary() Summary {
	p.mu.Lock()
	errs := append([]*DocumentError(nil), p.errs...)
	p.mu.Unlock()
	sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return Summary{
		RunID:     p.runID,
		Processed: int(p.processed.Load()),
		Fixed:     int(p.fixed.Load()),
		Unchanged: int(p.unchanged.Load()),
		Failed:    int(p.failed.Load()),
		Errors:    errs,
	}
}

func (p *Processor) finishRun() {
	if p.ledger == nil || p.runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.ledger.FinishRun(ctx, p.runID, int(p.processed.Load()), int(p.failed.Load())); err != nil {
		p.logger.Warn("failed to finish run", zap.String("run_id", p.runID), zap.Error(err))
	}
}

func (p *Processor) matches(name string) bool {
	for _, pat := range p.opts.Patterns {
		if ok, _ := filepath.Match(strings.TrimSpace(pat), name); ok {
			return true
		}
	}
	return false
}

func (p *Processor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(p.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !p.matches(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(p.opts.Dir, e.Name()))
	}

	p.opts.Progress.Start(len(paths))
	defer p.opts.Progress.Finish()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				// drain without touching files once cancelled
				if ctx.Err() != nil {
					continue
				}
				err := p.processFile(ctx, path)
				p.opts.Progress.Advance(path, err)
			}
		}()
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()
	return ctx.Err()
}

// processFile runs the pipeline over one document. Failures are logged,
// counted and returned, never fatal to the batch.
func (p *Processor) processFile(ctx context.Context, path string) error {
	p.processed.Add(1)

	data, err := os.ReadFile(path)
	if err != nil {
		return p.fail(ctx, path, err)
	}

	out, res, err := p.opts.Pipeline.Process(data)
	if err != nil {
		return p.fail(ctx, path, err)
	}

	status := store.DocumentUnchanged
	if res.Changed {
		status = store.DocumentFixed
		if !p.opts.DryRun {
			if err := writeFileAtomic(path, out); err != nil {
				return p.fail(ctx, path, err)
			}
			p.mu.Lock()
			p.written[path] = sha256.Sum256(out)
			p.mu.Unlock()
		}
		p.fixed.Add(1)
	} else {
		p.unchanged.Add(1)
	}

	p.logger.Debug("processed document",
		zap.String("path", path),
		zap.String("status", status),
		zap.Int("objects", res.Objects),
		zap.Int("remapped", res.Remapped),
		zap.Int("replaced", res.Replaced),
		zap.Any("fixups", res.Fixups))

	p.record(ctx, store.Document{
		Path:     path,
		Status:   status,
		Objects:  res.Objects,
		Remapped: res.Remapped,
		Fixups:   res.Fixups,
	})
	return nil
}

func (p *Processor) fail(ctx context.Context, path string, err error) error {
	derr := &DocumentError{Path: path, Err: err}
	p.failed.Add(1)
	p.mu.Lock()
	p.errs = append(p.errs, derr)
	p.mu.Unlock()

	p.logger.Error("failed to process document", zap.String("path", path), zap.Error(err))
	p.record(ctx, store.Document{
		Path:   path,
		Status: store.DocumentFailed,
		Error:  err.Error(),
	})
	return derr
}

// record writes the outcome to the ledger and publishes it. Both are
// best-effort.
func (p *Processor) record(ctx context.Context, doc store.Document) {
	doc.RunID = p.runID
	if p.ledger != nil && p.runID != "" {
		if _, err := p.ledger.RecordDocument(ctx, doc); err != nil {
			p.logger.Warn("failed to record document", zap.String("path", doc.Path), zap.Error(err))
		}
	}
	_ = p.bus.PublishDocument(ctx, bus.DocumentMessage{
		RunID:    doc.RunID,
		Command:  "fix",
		Path:     doc.Path,
		Status:   doc.Status,
		Error:    doc.Error,
		Objects:  doc.Objects,
		Remapped: doc.Remapped,
	})
}

// selfWritten reports whether the file at path still holds exactly the bytes
// this processor last wrote there.
func (p *Processor) selfWritten(path string) bool {
	p.mu.Lock()
	sum, ok := p.written[path]
	p.mu.Unlock()
	if !ok {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return sha256.Sum256(data) == sum
}

func (p *Processor) watchLoop(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(p.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}

	p.logger.Info("watching directory",
		zap.String("dir", p.opts.Dir),
		zap.Strings("patterns", p.opts.Patterns))

	ticker := time.NewTicker(p.opts.SettleDelay / 2)
	defer ticker.Stop()

	// path -> time of last event; files are handled once they settle
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("watch stopping",
				zap.Int64("processed", p.processed.Load()),
				zap.Int64("failed", p.failed.Load()))
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !p.matches(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = time.Now()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, ev.Name)
				p.mu.Lock()
				delete(p.written, ev.Name)
				p.mu.Unlock()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			p.logger.Warn("watch error", zap.Error(err))
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < p.opts.SettleDelay {
					continue
				}
				delete(pending, path)
				if p.selfWritten(path) {
					p.logger.Debug("skipping own write", zap.String("path", path))
					continue
				}
				_ = p.processFile(ctx, path)
			}
		}
	}
}
