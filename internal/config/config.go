package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/hejijunhao/sleuth/internal/engine/compactor"
	"github.com/hejijunhao/sleuth/internal/output"
)

// Version is the current Sleuth release version.
const Version = "0.4.0"

// EnvPrefix prefixes every environment variable, e.g. SLEUTH_TOP_N.
const EnvPrefix = "SLEUTH"

// Config holds all Sleuth configuration.
type Config struct {
	Source      SourceConfig
	Engine      EngineConfig
	Output      OutputConfig
	Log         LogConfig
	Watch       time.Duration // 0 = analyze once and exit
	Metrics     string        // Prometheus textfile path; empty disables
	ShowVersion bool
}

// SourceConfig selects the input files.
type SourceConfig struct {
	Provider string   // "dir" or "files"; inferred when empty
	Root     string   // bundle directory
	Files    []string // positional arguments
	Hidden   bool
	Include  []string // base-name globs
}

// EngineConfig holds analysis settings.
type EngineConfig struct {
	CatalogPath   string // YAML catalog; empty uses the built-in one
	Window        time.Duration
	MaxLineLength int
	MaxBlockLines int
	TopN          int
	Quick         bool
	Workers       int
	Timeout       time.Duration
	SampleLines   int
	Verbosity     string // "minimal", "standard", "full"
}

// OutputConfig holds report destination settings.
type OutputConfig struct {
	Format    string // "json" or "text" on stdout
	Pretty    bool
	File      string // also write JSON here; ".gz" compresses
	S3Bucket  string
	S3Prefix  string
	S3Region  string
	S3Retries int
	Quiet     bool // skip stdout
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load parses args (without the program name) into a Config. Every flag can
// also be set through a SLEUTH_-prefixed environment variable or a plain
// "name value" config file named by -config. Flags win over the environment,
// which wins over the file.
func Load(args []string) (Config, error) {
	var (
		cfg     Config
		include string
	)
	fs := newFlagSet(&cfg, &include)

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		return cfg, fmt.Errorf("config: parse: %w", err)
	}

	cfg.Source.Files = fs.Args()
	cfg.Source.Include = splitList(include)
	if cfg.Source.Provider == "" {
		cfg.Source.Provider = "files"
		if cfg.Source.Root != "" {
			cfg.Source.Provider = "dir"
		}
	}
	return cfg, nil
}

// newFlagSet defines every flag on a fresh set, binding values into cfg.
func newFlagSet(cfg *Config, include *string) *flag.FlagSet {
	fs := flag.NewFlagSet("sleuth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Source.Provider, "source", "", "input provider: dir or files (default: inferred)")
	fs.StringVar(&cfg.Source.Root, "dir", "", "support bundle directory")
	fs.BoolVar(&cfg.Source.Hidden, "hidden", false, "include dot files and directories")
	fs.StringVar(include, "include", "", "comma-separated base-name globs to analyze")

	fs.StringVar(&cfg.Engine.CatalogPath, "catalog", "", "YAML pattern catalog (default: built-in)")
	fs.DurationVar(&cfg.Engine.Window, "window", 5*time.Second, "correlation time window")
	fs.IntVar(&cfg.Engine.MaxLineLength, "max-line-length", 64*1024, "longest line matched, in bytes")
	fs.IntVar(&cfg.Engine.MaxBlockLines, "max-block-lines", 0, "longest multi-line event (default: catalog policy)")
	fs.IntVar(&cfg.Engine.TopN, "top", 10, "findings kept in the report")
	fs.BoolVar(&cfg.Engine.Quick, "quick", false, "match only the fast-path patterns")
	fs.IntVar(&cfg.Engine.Workers, "workers", 4, "files scanned concurrently")
	fs.DurationVar(&cfg.Engine.Timeout, "timeout", 0, "stop scanning after this long (0 = no limit)")
	fs.IntVar(&cfg.Engine.SampleLines, "sample-lines", 0, "lines sniffed to classify a file (default: 20)")
	fs.StringVar(&cfg.Engine.Verbosity, "verbosity", "standard", "snippet detail: minimal, standard, full")

	fs.StringVar(&cfg.Output.Format, "format", "json", "stdout format: json or text")
	fs.BoolVar(&cfg.Output.Pretty, "pretty", false, "indent JSON output")
	fs.BoolVar(&cfg.Output.Quiet, "quiet", false, "do not print the report to stdout")
	fs.StringVar(&cfg.Output.File, "out", "", "also write the JSON report to this file")
	fs.StringVar(&cfg.Output.S3Bucket, "s3-bucket", "", "also upload the report to this S3 bucket")
	fs.StringVar(&cfg.Output.S3Prefix, "s3-prefix", "sleuth", "S3 key prefix")
	fs.StringVar(&cfg.Output.S3Region, "s3-region", "", "S3 region (default: AWS config)")
	fs.IntVar(&cfg.Output.S3Retries, "s3-retries", 3, "S3 upload attempts")

	fs.StringVar(&cfg.Log.Level, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&cfg.Log.JSON, "log-json", false, "log as JSON")
	fs.DurationVar(&cfg.Watch, "watch", 0, "re-analyze at this interval (0 = once)")
	fs.StringVar(&cfg.Metrics, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	fs.String("config", "", "config file path")
	return fs
}

// Usage prints the flag summary to w.
func Usage(w io.Writer) {
	var (
		cfg     Config
		include string
	)
	fs := newFlagSet(&cfg, &include)
	fs.SetOutput(w)
	fmt.Fprintf(w, "usage: sleuth [flags] [file ...]\n\nflags:\n")
	fs.PrintDefaults()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error

	switch c.Source.Provider {
	case "dir":
		if c.Source.Root == "" {
			errs = append(errs, errors.New("source dir requires -dir"))
		}
	case "files":
		if len(c.Source.Files) == 0 {
			errs = append(errs, errors.New("no input: pass -dir or one or more files"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q (want dir or files)", c.Source.Provider))
	}

	if c.Engine.CatalogPath != "" {
		if _, err := os.Stat(c.Engine.CatalogPath); err != nil {
			errs = append(errs, fmt.Errorf("catalog file: %w", err))
		}
	}
	if c.Engine.Window < 0 {
		errs = append(errs, fmt.Errorf("window must be >= 0, got %v", c.Engine.Window))
	}
	if c.Engine.MaxLineLength < 0 {
		errs = append(errs, fmt.Errorf("max-line-length must be >= 0, got %d", c.Engine.MaxLineLength))
	}
	if c.Engine.MaxBlockLines < 0 {
		errs = append(errs, fmt.Errorf("max-block-lines must be >= 0, got %d", c.Engine.MaxBlockLines))
	}
	if c.Engine.TopN < 0 {
		errs = append(errs, fmt.Errorf("top must be >= 0, got %d", c.Engine.TopN))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Engine.Workers))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be >= 0, got %v", c.Engine.Timeout))
	}
	if c.Engine.SampleLines < 0 {
		errs = append(errs, fmt.Errorf("sample-lines must be >= 0, got %d", c.Engine.SampleLines))
	}
	if _, err := compactor.ParseVerbosity(c.Engine.Verbosity); err != nil {
		errs = append(errs, fmt.Errorf("verbosity: %w", err))
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Output.S3Bucket != "" && c.Output.S3Retries < 1 {
		errs = append(errs, fmt.Errorf("s3-retries must be >= 1, got %d", c.Output.S3Retries))
	}
	if c.Watch < 0 {
		errs = append(errs, fmt.Errorf("watch must be >= 0, got %v", c.Watch))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Verbosity returns the parsed verbosity, or Standard when it is invalid.
func (c Config) Verbosity() compactor.Verbosity {
	v, err := compactor.ParseVerbosity(c.Engine.Verbosity)
	if err != nil {
		return compactor.Standard
	}
	return v
}
