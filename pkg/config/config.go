// Package config reads kerf's TOML options file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chazu/kerf/pkg/bop"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the options file looked up in the working directory when no
// path is given.
const FileName = "kerf.toml"

// Config is the contents of the options file. Missing keys keep their
// defaults.
type Config struct {
	Boolean Boolean `toml:"boolean"`
	Eval    Eval    `toml:"eval"`
	Log     Log     `toml:"log"`
}

// Boolean holds the defaults for Boolean operations.
type Boolean struct {
	FuzzyTolerance float64  `toml:"fuzzy_tolerance"`
	Parallel       bool     `toml:"parallel"`
	Workers        int      `toml:"workers"` // zero uses every CPU
	BestEffort     bool     `toml:"best_effort"`
	Budget         Duration `toml:"budget"` // zero means no deadline
}

// Eval configures scene evaluation.
type Eval struct {
	// Kernel is "brep" or "sdfx".
	Kernel string `toml:"kernel"`
	// Timeout limits the evaluation of a scene program.
	Timeout Duration `toml:"timeout"`
}

// Log configures the logger.
type Log struct {
	Level slog.Level `toml:"level"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Boolean: Boolean{},
		Eval:    Eval{Kernel: "brep", Timeout: Duration(5 * time.Second)},
		Log:     Log{Level: slog.LevelWarn},
	}
}

// Decode reads a configuration from r on top of the defaults. Unknown keys
// are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path. An empty path reads FileName if it exists
// and otherwise returns the defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%w (in %s)", err, path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Boolean.FuzzyTolerance < 0:
		return fmt.Errorf("config: boolean.fuzzy_tolerance is %g, must not be negative", c.Boolean.FuzzyTolerance)
	case c.Boolean.Workers < 0:
		return fmt.Errorf("config: boolean.workers is %d, must not be negative", c.Boolean.Workers)
	case c.Boolean.Budget < 0:
		return fmt.Errorf("config: boolean.budget is %s, must not be negative", time.Duration(c.Boolean.Budget))
	case c.Eval.Timeout < 0:
		return fmt.Errorf("config: eval.timeout is %s, must not be negative", time.Duration(c.Eval.Timeout))
	case c.Eval.Kernel != "brep" && c.Eval.Kernel != "sdfx":
		return fmt.Errorf("config: eval.kernel is %q, want brep or sdfx", c.Eval.Kernel)
	}
	return nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Options converts the boolean section to bop.Options using log.
func (c Config) Options(log *slog.Logger) bop.Options {
	return bop.Options{
		FuzzyTolerance: c.Boolean.FuzzyTolerance,
		Parallel:       c.Boolean.Parallel,
		Workers:        c.Boolean.Workers,
		BestEffort:     c.Boolean.BestEffort,
		Budget:         time.Duration(c.Boolean.Budget),
		Logger:         log,
	}
}
