package sleuth

import (
	"log/slog"
	"time"
)

type options struct {
	catalogData   []byte
	catalogPath   string
	window        time.Duration
	maxLineLength int
	maxBlockLines int
	topN          int
	quick         bool
	workers       int
	verbosity     string
	logger        *slog.Logger
}

// Option configures an Analyzer.
type Option func(*options)

// WithCatalog uses a YAML pattern catalog instead of the built-in one.
func WithCatalog(yaml []byte) Option {
	return func(o *options) {
		o.catalogData = yaml
	}
}

// WithCatalogFile loads the YAML pattern catalog at path.
func WithCatalogFile(path string) Option {
	return func(o *options) {
		o.catalogPath = path
	}
}

// WithWindow sets how close in time two events from different files must be
// to join a chain. Default: 5s.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithMaxLineLength sets the longest line, in bytes, that is matched.
// Longer lines are counted as anomalies. Default: 64KiB.
func WithMaxLineLength(n int) Option {
	return func(o *options) {
		o.maxLineLength = n
	}
}

// WithMaxBlockLines bounds multi-line events such as stack traces.
func WithMaxBlockLines(n int) Option {
	return func(o *options) {
		o.maxBlockLines = n
	}
}

// WithTopN sets how many findings a report keeps. Default: 10.
func WithTopN(n int) Option {
	return func(o *options) {
		o.topN = n
	}
}

// WithQuick matches only the catalog's fast-path patterns.
func WithQuick(quick bool) Option {
	return func(o *options) {
		o.quick = quick
	}
}

// WithWorkers sets how many files are scanned concurrently. Default: 4.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithVerbosity controls how much event text reports carry:
// "minimal", "standard", or "full". Default: "standard".
func WithVerbosity(v string) Option {
	return func(o *options) {
		o.verbosity = v
	}
}

// WithLogger sets the logger for scan diagnostics. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func defaultOptions() options {
	return options{
		verbosity: "standard",
		logger:    slog.Default(),
	}
}
