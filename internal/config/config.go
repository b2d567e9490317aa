// Package config loads the rom.yaml file describing managed collections.
//
//	concurrency: 32
//	collections:
//	  nes:
//	    dat: [dat/nes.dat]
//	    dirs: [/roms/NES]
//	    categories: ["Japan", "USA"]
//	    ignore: ["[ROM Hacks]", "[Translations]"]
//
// The older top-level key "console" is accepted in place of "collections".
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultName is the config file base name searched for when none is given.
const DefaultName = "rom"

// Collection is one managed set of archives and the catalog it is checked
// against.
type Collection struct {
	// Dat lists catalog files; the first one is used.
	Dat        []string `mapstructure:"dat" yaml:"dat"`
	Dirs       []string `mapstructure:"dirs" yaml:"dirs"`
	Categories []string `mapstructure:"categories" yaml:"categories"`
	// Ignore names directories skipped while scanning.
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// Config is the decoded config file.
type Config struct {
	Concurrency int                   `mapstructure:"concurrency" yaml:"concurrency"`
	Collections map[string]Collection `mapstructure:"collections" yaml:"collections"`
	Console     map[string]Collection `mapstructure:"console" yaml:"console,omitempty"`
}

// Validate checks that the collection can be run.
func (c Collection) Validate() error {
	if len(c.Dat) == 0 || strings.TrimSpace(c.Dat[0]) == "" {
		return fmt.Errorf("%w: no valid dat file found, check config file", ErrInvalidConfig)
	}
	if len(nonEmpty(c.Dirs)) == 0 {
		return fmt.Errorf("%w: no valid rom directory found, check config file", ErrInvalidConfig)
	}
	if len(nonEmpty(c.Categories)) == 0 {
		return fmt.Errorf("%w: no valid categories found, check config file", ErrInvalidConfig)
	}
	return nil
}

// DatFile returns the catalog path.
func (c Collection) DatFile() string {
	if len(c.Dat) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Dat[0])
}

// With returns c with every non-empty field of over replacing its own.
func (c Collection) With(over Collection) Collection {
	if len(nonEmpty(over.Dat)) > 0 {
		c.Dat = over.Dat
	}
	if len(nonEmpty(over.Dirs)) > 0 {
		c.Dirs = over.Dirs
	}
	if len(nonEmpty(over.Categories)) > 0 {
		c.Categories = over.Categories
	}
	if len(nonEmpty(over.Ignore)) > 0 {
		c.Ignore = over.Ignore
	}
	return c
}

// CategoryNames returns the configured categories in order, without blanks
// (which would select the whole catalog) and without repeats.
func (c Collection) CategoryNames() []string {
	names := nonEmpty(c.Categories)
	out := names[:0]
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// New returns a viper instance for the config at path. With an empty path it
// searches for rom.yaml in the working directory, then in the user config
// directory under rom-verify/. Environment variables prefixed ROMVERIFY_
// override scalar keys (ROMVERIFY_CONCURRENCY).
func New(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ROMVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("concurrency", 0)

	if path != "" {
		v.SetConfigFile(path)
		return v
	}
	v.SetConfigName(DefaultName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "rom-verify"))
	}
	return v
}

// Read loads the config file into v. When no file was named explicitly a
// missing file is not an error; the caller is expected to supply a collection
// through flags instead.
func Read(v *viper.Viper, explicit bool) error {
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &nf) {
			slog.Debug("config_not_found")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	slog.Debug("config_loaded", "path", v.ConfigFileUsed())
	return nil
}

// Load decodes v. Collection names are lower case, as viper folds keys.
func Load(v *viper.Viper) (Config, error) {
	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("%w: unable to decode config: %v", ErrInvalidConfig, err)
	}
	if out.Collections == nil {
		out.Collections = make(map[string]Collection)
	}
	for name, c := range out.Console {
		if _, ok := out.Collections[name]; !ok {
			out.Collections[name] = c
		}
	}
	out.Console = nil
	return out, nil
}

// Collection returns the named collection after validating it.
func (c Config) Collection(name string) (Collection, error) {
	col, ok := c.Collections[strings.ToLower(name)]
	if !ok {
		return Collection{}, fmt.Errorf("%w: no collection %q", ErrInvalidConfig, name)
	}
	if err := col.Validate(); err != nil {
		return Collection{}, fmt.Errorf("collection %q: %w", name, err)
	}
	return col, nil
}

// Names returns the collection names in sorted order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Collections))
	for name := range c.Collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
