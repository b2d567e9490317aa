// Package verify matches candidate archives against per-category catalog
// shards and reports which catalog entries are present.
//
// Categories are processed one after another. Each category gets one task per
// candidate file, run on a bounded pool; the pool is drained before the
// category is reported, so a Report never observes a task still in flight.
// A file is extracted and hashed at most once per run no matter how many
// categories consult it.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/APTlantis/ROM-Verify/internal/archive"
	"github.com/APTlantis/ROM-Verify/internal/metrics"
	"github.com/APTlantis/ROM-Verify/internal/romhash"
)

// maxConcurrency caps Options.Concurrency.
const maxConcurrency = 1024

// DefaultConcurrency returns the task pool size used when none is configured.
func DefaultConcurrency() int {
	return max(32, runtime.NumCPU())
}

// Progress is passed to Options.OnProgress after every task.
type Progress struct {
	Category  string
	Done      int
	Total     int
	Confirmed int
	Original  int
}

// Options tunes an Engine.
type Options struct {
	// Concurrency bounds the tasks running at once (default DefaultConcurrency).
	Concurrency int
	// ProgressInterval logs progress periodically when > 0.
	ProgressInterval time.Duration
	// ProgressEvery logs progress every N finished tasks when > 0.
	ProgressEvery int
	// OnProgress is called from task goroutines; it must be safe for
	// concurrent use.
	OnProgress func(Progress)
	// Manifest receives one JSON line per distinct candidate file.
	Manifest io.Writer
}

// FileStats counts distinct candidate files by outcome.
type FileStats struct {
	Candidates int `json:"candidates" yaml:"candidates"`
	Hashed     int `json:"hashed" yaml:"hashed"`
	Matched    int `json:"matched" yaml:"matched"`
	Duplicate  int `json:"duplicate" yaml:"duplicate"`
	Unmatched  int `json:"unmatched" yaml:"unmatched"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Errors     int `json:"errors" yaml:"errors"`
}

// Summary is the result of one Run.
type Summary struct {
	Collection  string
	Reports     []Report
	Files       FileStats
	BytesHashed int64
	Duration    time.Duration
}

// Engine runs verification tasks. An Engine is used for a single Run.
type Engine struct {
	opts     Options
	hash     func(path string) (Hashed, error)
	manifest *SafeWriter

	memoMu sync.Mutex
	memo   map[string]*fileResult

	ctrs counters
}

// New returns an Engine configured by opts.
func New(opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency()
	}
	if opts.Concurrency > maxConcurrency {
		opts.Concurrency = maxConcurrency
	}
	var mw *SafeWriter
	if opts.Manifest != nil {
		if sw, ok := opts.Manifest.(*SafeWriter); ok {
			mw = sw
		} else {
			mw = NewSafeWriter(opts.Manifest)
		}
	}
	return &Engine{
		opts:     opts,
		hash:     HashFile,
		manifest: mw,
		memo:     make(map[string]*fileResult),
	}
}

// fileResult is the memoized outcome of hashing one path.
type fileResult struct {
	once     sync.Once
	hashed   Hashed
	err      error
	started  time.Time
	finished time.Time

	mu         sync.Mutex
	categories []string
	duplicate  bool
}

func (e *Engine) result(path string) *fileResult {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	fr, ok := e.memo[path]
	if !ok {
		fr = &fileResult{}
		e.memo[path] = fr
	}
	return fr
}

func (e *Engine) hashOnce(path string) *fileResult {
	fr := e.result(path)
	fr.once.Do(func() {
		fr.started = time.Now()
		fr.hashed, fr.err = e.hash(path)
		fr.finished = time.Now()
		metrics.HashDuration.Observe(fr.finished.Sub(fr.started).Seconds())
		if fr.err != nil {
			logSkip(path, fr.err)
			return
		}
		metrics.BytesHashed.Add(float64(fr.hashed.Size))
		slog.Debug("hashed", "path", path, "entry", fr.hashed.Entry, "crc", romhash.Format(fr.hashed.CRC))
	})
	return fr
}

func logSkip(path string, err error) {
	switch {
	case errors.Is(err, archive.ErrUnsupportedFormat):
		slog.Debug("skip", "path", path, "reason", "unsupported_format")
	case errors.Is(err, archive.ErrCorruptArchive):
		slog.Warn("skip", "path", path, "reason", "corrupt_archive", "err", err)
	case errors.Is(err, romhash.ErrMalformedContent):
		slog.Warn("skip", "path", path, "reason", "malformed_content", "err", err)
	default:
		slog.Warn("skip", "path", path, "reason", "error", "err", err)
	}
}

// task checks one file against one category. Failures are contained here.
func (e *Engine) task(cat *Category, path string) {
	metrics.Inflight.Inc()
	defer metrics.Inflight.Dec()

	fr := e.hashOnce(path)
	if fr.err != nil {
		if errors.Is(fr.err, archive.ErrUnsupportedFormat) {
			e.ctrs.incSkipped()
			metrics.Tasks.WithLabelValues(metrics.ResultSkipped).Inc()
		} else {
			e.ctrs.incErrors()
			metrics.Tasks.WithLabelValues(metrics.ResultError).Inc()
		}
		return
	}

	switch cat.consume(fr.hashed.CRC) {
	case consumeHit:
		fr.mu.Lock()
		fr.categories = append(fr.categories, cat.Name)
		fr.mu.Unlock()
		e.ctrs.incMatched()
		metrics.Tasks.WithLabelValues(metrics.ResultMatched).Inc()
	case consumeDuplicate:
		fr.mu.Lock()
		fr.duplicate = true
		fr.mu.Unlock()
		metrics.Tasks.WithLabelValues(metrics.ResultDuplicate).Inc()
	default:
		metrics.Tasks.WithLabelValues(metrics.ResultMiss).Inc()
	}
}

// Run verifies files against every category in order and returns the per
// category reports in the same order. Cancelling ctx stops scheduling new
// tasks; tasks already started are still waited for, and the reports then
// cover only the files processed so far.
func (e *Engine) Run(ctx context.Context, collection string, cats []*Category, files []string) (Summary, error) {
	start := time.Now()
	e.ctrs.reset(int64(len(cats) * len(files)))
	metrics.SetStatusSource(func() metrics.Status {
		snap := e.ctrs.snapshot()
		return metrics.Status{
			Processed: snap.done,
			Matched:   snap.matched,
			Skipped:   snap.skipped,
			Errors:    snap.errors,
			UptimeSec: int64(time.Since(start).Seconds()),
			Rate:      metrics.Rate(snap.done, time.Since(start)),
		}
	})

	slog.Info("verify_start", "collection", collection, "categories", len(cats), "files", len(files), "concurrency", e.opts.Concurrency)

	stopProgress := e.startProgressLog(ctx, collection, start)
	defer stopProgress()

	sum := Summary{Collection: collection, Reports: make([]Report, 0, len(cats))}
	var runErr error
	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rep, err := e.runCategory(ctx, cat, files)
		if err != nil {
			runErr = err
		}
		metrics.Completion.WithLabelValues(collection, cat.Name).Set(rep.Percent / 100)
		if rep.Empty() {
			slog.Warn("category_empty", "collection", collection, "category", cat.Name, "err", rep.Err())
		} else {
			slog.Info("category_done", "collection", collection, "category", cat.Name,
				"confirmed", rep.Confirmed, "original", rep.Original, "percent", fmt.Sprintf("%.2f", rep.Percent))
		}
		sum.Reports = append(sum.Reports, rep)
		if runErr != nil {
			break
		}
	}

	recs := e.records(collection, files, &sum)
	if sum.Files.Skipped > 0 {
		slog.Info("skip_summary", "collection", collection, "reason", "unsupported_format", "files", sum.Files.Skipped)
	}
	if e.manifest != nil {
		if err := writeRecords(e.manifest, recs); err != nil {
			slog.Warn("manifest_write_failed", "err", err)
		}
	}

	sum.Duration = time.Since(start)
	slog.Info("verify_done", "collection", collection, "files", sum.Files.Candidates, "hashed", sum.Files.Hashed,
		"matched", sum.Files.Matched, "unmatched", sum.Files.Unmatched, "skipped", sum.Files.Skipped,
		"errors", sum.Files.Errors, "elapsed", sum.Duration.String())
	return sum, runErr
}

func (e *Engine) runCategory(ctx context.Context, cat *Category, files []string) (Report, error) {
	p := pool.New().WithMaxGoroutines(e.opts.Concurrency)
	total := len(files)
	var done atomic.Int64
	var err error
	for _, path := range files {
		if err = ctx.Err(); err != nil {
			break
		}
		path := path
		p.Go(func() {
			e.task(cat, path)
			n := e.ctrs.incDone()
			d := done.Add(1)
			if e.opts.ProgressEvery > 0 && n%int64(e.opts.ProgressEvery) == 0 {
				e.logProgress("category", cat.Name, time.Time{})
			}
			if e.opts.OnProgress != nil {
				_, confirmed, original := cat.Counts()
				e.opts.OnProgress(Progress{Category: cat.Name, Done: int(d), Total: total, Confirmed: confirmed, Original: original})
			}
		})
	}
	p.Wait()
	return cat.Report(), err
}

// records builds the manifest records and fills in sum's file stats. Each
// distinct path is counted once, in first-seen order.
func (e *Engine) records(collection string, files []string, sum *Summary) []Record {
	seen := make(map[string]struct{}, len(files))
	recs := make([]Record, 0, len(files))
	for _, path := range files {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		e.memoMu.Lock()
		fr, ok := e.memo[path]
		e.memoMu.Unlock()
		if !ok {
			// never reached: no categories, or the run was cancelled
			continue
		}
		sum.Files.Candidates++

		rec := Record{
			SchemaVersion: 1,
			Collection:    collection,
			Path:          path,
			Entry:         fr.hashed.Entry,
			Size:          fr.hashed.Size,
			StartedAt:     stamp(fr.started),
			FinishedAt:    stamp(fr.finished),
		}
		fr.mu.Lock()
		rec.Categories = append([]string(nil), fr.categories...)
		duplicate := fr.duplicate
		fr.mu.Unlock()

		switch {
		case errors.Is(fr.err, archive.ErrUnsupportedFormat):
			rec.Status = StatusSkipped
			rec.Error = fr.err.Error()
			sum.Files.Skipped++
		case fr.err != nil:
			rec.Status = StatusError
			rec.Error = fr.err.Error()
			sum.Files.Errors++
		default:
			rec.CRC = romhash.Format(fr.hashed.CRC)
			sum.Files.Hashed++
			sum.BytesHashed += int64(fr.hashed.Size)
			switch {
			case len(rec.Categories) > 0:
				rec.Status = StatusMatched
				sum.Files.Matched++
			case duplicate:
				rec.Status = StatusDuplicate
				sum.Files.Duplicate++
			default:
				rec.Status = StatusUnmatched
				sum.Files.Unmatched++
				slog.Debug("no_match", "path", path, "entry", fr.hashed.Entry, "crc", rec.CRC)
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
