package verify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/APTlantis/ROM-Verify/internal/metrics"
)

type counterSnapshot struct {
	total   int64
	done    int64
	matched int64
	skipped int64
	errors  int64
}

// counters track task outcomes across all categories of a run.
type counters struct {
	mu      sync.Mutex
	total   int64
	done    int64
	matched int64
	skipped int64
	errors  int64
}

func (c *counters) reset(total int64) {
	c.mu.Lock()
	c.total, c.done, c.matched, c.skipped, c.errors = total, 0, 0, 0, 0
	c.mu.Unlock()
}

func (c *counters) incDone() int64 {
	c.mu.Lock()
	c.done++
	n := c.done
	c.mu.Unlock()
	return n
}

func (c *counters) incMatched() { c.mu.Lock(); c.matched++; c.mu.Unlock() }
func (c *counters) incSkipped() { c.mu.Lock(); c.skipped++; c.mu.Unlock() }
func (c *counters) incErrors()  { c.mu.Lock(); c.errors++; c.mu.Unlock() }

func (c *counters) snapshot() counterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return counterSnapshot{total: c.total, done: c.done, matched: c.matched, skipped: c.skipped, errors: c.errors}
}

func (e *Engine) logProgress(key, val string, start time.Time) {
	snap := e.ctrs.snapshot()
	args := []any{key, val, "done", snap.done, "total", snap.total, "matched", snap.matched, "skipped", snap.skipped, "errors", snap.errors}
	if !start.IsZero() {
		elapsed := time.Since(start)
		args = append(args, "elapsed", elapsed.String(), "rate_per_sec", metrics.Rate(snap.done, elapsed))
	}
	slog.Info("verify_progress", args...)
}

// startProgressLog logs progress every ProgressInterval until the returned
// stop function is called. It is a no-op when the interval is not set.
func (e *Engine) startProgressLog(ctx context.Context, collection string, start time.Time) func() {
	if e.opts.ProgressInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	ticker := time.NewTicker(e.opts.ProgressInterval)
	go func() {
		defer ticker.Stop()
		var last int64 = -1
		for {
			select {
			case <-ticker.C:
				snap := e.ctrs.snapshot()
				if snap.done == last {
					continue
				}
				e.logProgress("collection", collection, start)
				last = snap.done
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
