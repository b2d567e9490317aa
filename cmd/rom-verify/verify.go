package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
	"github.com/APTlantis/ROM-Verify/internal/metrics"
	"github.com/APTlantis/ROM-Verify/internal/report"
	"github.com/APTlantis/ROM-Verify/internal/scan"
	"github.com/APTlantis/ROM-Verify/internal/verify"
)

type verifyOptions struct {
	*rootOptions

	concurrency      int
	missing          bool
	missingOut       string
	summaryOut       string
	manifest         string
	progress         bool
	progressInterval time.Duration
	progressEvery    int
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "verify [collection...]",
		Short: "Scan collections and report completion per category",
		Long: `Scan the ROM directories of each collection, hash every archive and
report how much of each category is present.

Examples:
  # Every collection in rom.yaml
  rom-verify verify

  # One collection, listing what is missing
  rom-verify verify nes --missing

  # No config file at all
  rom-verify verify --dat nes.dat --dir /roms/NES --category USA --category Japan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args)
		},
	}

	fs := cmd.Flags()
	addCollectionFlags(fs, root)
	fs.IntVarP(&opts.concurrency, "concurrency", "j", 0, fmt.Sprintf("Concurrent hashing tasks (0 = config or %d)", verify.DefaultConcurrency()))
	fs.BoolVar(&opts.missing, "missing", false, "Print the missing entries after the report")
	fs.StringVar(&opts.missingOut, "missing-out", "", "Write the missing entries to this file (.zst to compress)")
	fs.StringVar(&opts.summaryOut, "summary-out", "", "Write a machine readable summary (.json or .yaml)")
	fs.StringVar(&opts.manifest, "manifest", "", "Write one JSON line per scanned file to this path")
	fs.BoolVar(&opts.progress, "progress", true, "Draw a progress bar when stderr is a terminal")
	fs.DurationVar(&opts.progressInterval, "progress-interval", 0, "Periodic progress logging interval (e.g., 5s; 0=disabled)")
	fs.IntVar(&opts.progressEvery, "progress-every", 0, "Log progress every N finished tasks (0=disabled)")
	return cmd
}

func runVerify(cmd *cobra.Command, opts *verifyOptions, args []string) error {
	_, cfg, err := opts.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	targets, err := opts.targets(cfg, args)
	if err != nil {
		return err
	}
	if opts.summaryOut != "" {
		if _, err := report.FormatOf(opts.summaryOut); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(opts.listen)

	var manifest *verify.SafeWriter
	if opts.manifest != "" {
		f, err := os.Create(opts.manifest)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		defer f.Close()
		manifest = verify.NewSafeWriter(f)
	}

	var bar *report.Bar
	if opts.progress && report.IsTerminal(os.Stderr) {
		bar = report.NewBar(cmd.ErrOrStderr(), 100*time.Millisecond)
	}

	out := cmd.OutOrStdout()
	printer := report.NewPrinter(out, report.NewStyles(out))

	var (
		sums    []verify.Summary
		reports []verify.Report
		runErr  error
	)
	for _, t := range targets {
		sum, err := verifyCollection(ctx, t, opts, cfg.Concurrency, manifest, bar)
		if errors.Is(err, catalog.ErrCatalogUnreadable) {
			return fmt.Errorf("collection %q: %w", t.name, err)
		}
		printer.Summary(sum)
		if opts.missing {
			printer.Missing(sum.Reports)
		}
		sums = append(sums, sum)
		reports = append(reports, sum.Reports...)
		if err != nil {
			runErr = err
			break
		}
	}

	if opts.missingOut != "" {
		if err := report.WriteMissing(opts.missingOut, reports); err != nil {
			return fmt.Errorf("missing list: %w", err)
		}
		slog.Info("missing_written", "path", opts.missingOut, "entries", len(report.MissingLines(reports)))
	}
	if opts.summaryOut != "" {
		if err := report.WriteSummary(opts.summaryOut, sums); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		slog.Info("summary_written", "path", opts.summaryOut)
	}
	return runErr
}

func verifyCollection(ctx context.Context, t target, opts *verifyOptions, concurrency int, manifest *verify.SafeWriter, bar *report.Bar) (verify.Summary, error) {
	cat, err := catalog.Load(t.col.DatFile())
	if err != nil {
		return verify.Summary{Collection: t.name}, err
	}
	names := t.col.CategoryNames()
	shards, _ := cat.Partition(names)
	cats := verify.NewCategories(names, shards)

	files, err := scan.Find(t.col.Dirs, t.col.Ignore)
	if err != nil {
		// every category then reports nothing found
		slog.Error("scan_failed", "collection", t.name, "err", err)
	}

	vo := verify.Options{
		Concurrency:      concurrency,
		ProgressInterval: opts.progressInterval,
		ProgressEvery:    opts.progressEvery,
	}
	if manifest != nil {
		vo.Manifest = manifest
	}
	if bar != nil {
		vo.OnProgress = bar.Update
		defer bar.Done()
	}
	return verify.New(vo).Run(ctx, t.name, cats, files)
}
