package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/APTlantis/ROM-Verify/internal/config"
)

// adHocName names a collection given entirely by flags.
const adHocName = "default"

type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string
	listen     string

	// collection overrides
	dat        string
	dirs       []string
	categories []string
	ignore     []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "rom-verify",
		Short: "Verify ROM archive collections against reference catalogs",
		Long: `rom-verify checks zipped ROM dumps against a No-Intro style DAT catalog.

Each archive holds one ROM image. Its CRC-32, computed without the 16 byte
header, identifies it. Catalog entries are split into categories by name
(for example "USA" or "Japan"). The report shows, per category, how many
entries were found and which are missing.

Commands:
  verify      Scan collections and report completion per category
  partition   Show how many catalog entries fall in each category
  hash        Print the header-stripped checksum of archives`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./rom.yaml, then <user config dir>/rom-verify/rom.yaml)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Logging format: text|json")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Logging level: debug|info|warn|error")
	pf.StringVar(&opts.listen, "listen", "", "Expose /metrics, /api/status and pprof on this address (e.g., :9090)")

	cmd.AddCommand(newVerifyCmd(opts), newPartitionCmd(opts), newHashCmd())
	return cmd
}

func addCollectionFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVar(&opts.dat, "dat", "", "catalog file (.dat, .xml, .zip or .zst); overrides the config")
	fs.StringSliceVar(&opts.dirs, "dir", nil, "ROM directory to scan (repeatable); overrides the config")
	fs.StringSliceVar(&opts.categories, "category", nil, "category to report (repeatable); overrides the config")
	fs.StringSliceVar(&opts.ignore, "ignore", nil, "directory name to skip (repeatable); overrides the config")
}

// parseLevel accepts the level names used by --log-level.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// newLogger builds the process logger for --log-format and --log-level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
}

func (o *rootOptions) override() config.Collection {
	c := config.Collection{Dirs: o.dirs, Categories: o.categories, Ignore: o.ignore}
	if o.dat != "" {
		c.Dat = []string{o.dat}
	}
	return c
}

func (o *rootOptions) hasOverride() bool {
	return o.dat != "" || len(o.dirs) > 0 || len(o.categories) > 0 || len(o.ignore) > 0
}

// loadConfig reads the config file, if any, with flags bound on top.
func (o *rootOptions) loadConfig(flags *pflag.FlagSet) (*viper.Viper, config.Config, error) {
	v := config.New(o.configPath)
	if f := flags.Lookup("concurrency"); f != nil {
		if err := v.BindPFlag("concurrency", f); err != nil {
			return nil, config.Config{}, err
		}
	}
	if err := config.Read(v, o.configPath != ""); err != nil {
		return nil, config.Config{}, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, config.Config{}, err
	}
	return v, cfg, nil
}

type target struct {
	name string
	col  config.Collection
}

// targets resolves the collections to work on. A named collection has the
// flag overrides applied. With no name, flags alone describe one collection,
// or every configured collection runs in name order.
func (o *rootOptions) targets(cfg config.Config, args []string) ([]target, error) {
	var names []string
	switch {
	case len(args) > 0:
		names = args
	case o.hasOverride():
		col := o.override()
		if err := col.Validate(); err != nil {
			return nil, err
		}
		return []target{{name: adHocName, col: col}}, nil
	default:
		names = cfg.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: no collections configured; pass a config file or --dat, --dir and --category", config.ErrInvalidConfig)
		}
	}

	out := make([]target, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		col, ok := cfg.Collections[key]
		if !ok && !o.hasOverride() {
			return nil, fmt.Errorf("%w: no collection %q", config.ErrInvalidConfig, name)
		}
		col = col.With(o.override())
		if err := col.Validate(); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		out = append(out, target{name: key, col: col})
	}
	return out, nil
}
