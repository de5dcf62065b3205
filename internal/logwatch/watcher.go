package logwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLogName     = "ricc2.out"
	DefaultInterval    = 90 * time.Second
	DefaultTimeout     = 48 * time.Hour
	DefaultConcurrency = 16
)

type Result struct {
	Dir    string
	Log    string
	Status Status
	Err    error
}

type Report struct {
	Results []Result
}

// Failed returns the jobs a relocator should move.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == Incomplete || res.Status == Errored {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

type Watcher struct {
	// LogName is the log file looked up inside every job directory
	LogName     string
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	Markers     Markers

	logger *slog.Logger
}

func NewWatcher(logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		LogName:     DefaultLogName,
		Interval:    DefaultInterval,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Markers:     TurbomoleMarkers(),
		logger:      logger,
	}
}

// Wait blocks until the log exists and its size is the same on two
// consecutive polls. It returns false when the timeout runs out first.
func (w *Watcher) Wait(ctx context.Context, path string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	for {
		_, err := os.Stat(path)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("failed to stat log: %w", err)
		}
		w.logger.Debug("waiting for log to appear", "path", path)
		if done, err := w.sleep(ctx); done {
			return false, err
		}
	}

	previous := int64(-1)
	marked, err := hasAnyMarker(path, w.Markers)
	if err != nil {
		return false, fmt.Errorf("failed to scan log: %w", err)
	}
	if marked {
		previous, err = fileSize(path)
		if err != nil {
			return false, err
		}
	}

	for {
		current, err := fileSize(path)
		if err != nil {
			return false, err
		}
		if current == previous {
			return true, nil
		}
		previous = current
		if done, err := w.sleep(ctx); done {
			return false, err
		}
	}
}

// sleep waits one interval. done is set when the context ended; err is nil
// when that was the watch timeout rather than the caller cancelling.
func (w *Watcher) sleep(ctx context.Context) (done bool, err error) {
	t := time.NewTimer(w.Interval)
	defer t.Stop()
	select {
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return true, nil
		}
		return true, ctx.Err()
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat log: %w", err)
	}
	return info.Size(), nil
}

// WatchAll waits for the log of every job directory and classifies it.
// Results keep the order of dirs.
func (w *Watcher) WatchAll(ctx context.Context, dirs []string) (Report, error) {
	results := xsync.NewMapOf[string, Result]()

	g, gctx := errgroup.WithContext(ctx)
	limit := w.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for _, dir := range dirs {
		g.Go(func() error {
			res, err := w.watchOne(gctx, dir)
			if err != nil {
				return err
			}
			results.Store(dir, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Results: make([]Result, 0, len(dirs))}
	for _, dir := range dirs {
		if res, ok := results.Load(dir); ok {
			report.Results = append(report.Results, res)
		}
	}
	return report, nil
}

func (w *Watcher) watchOne(ctx context.Context, dir string) (Result, error) {
	res := Result{Dir: dir, Log: filepath.Join(dir, w.LogName)}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		w.logger.Warn("job directory missing", "dir", dir)
		res.Status = Missing
		return res, nil
	}

	stable, err := w.Wait(ctx, res.Log)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Status = Incomplete
		res.Err = err
		return res, nil
	}
	if !stable {
		w.logger.Warn("timed out waiting for log", "path", res.Log)
		res.Status = TimedOut
		return res, nil
	}

	res.Status, err = Classify(res.Log, w.Markers)
	if err != nil {
		res.Status = Incomplete
		res.Err = err
	}
	w.logger.Info("job finished", "dir", dir, "status", res.Status)
	return res, nil
}
