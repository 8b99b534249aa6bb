package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hejijunhao/sleuth/internal/engine/aggregate"
	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/engine/classifier"
	"github.com/hejijunhao/sleuth/internal/engine/compactor"
	"github.com/hejijunhao/sleuth/internal/engine/correlate"
	"github.com/hejijunhao/sleuth/internal/engine/report"
	"github.com/hejijunhao/sleuth/internal/engine/scanner"
	"github.com/hejijunhao/sleuth/internal/metrics"
	"github.com/hejijunhao/sleuth/internal/model"
	"github.com/hejijunhao/sleuth/internal/source"
)

// ErrNilCatalog is returned by New when no catalog is supplied.
var ErrNilCatalog = errors.New("engine: catalog is required")

// Config tunes an analysis run. Zero values select defaults.
type Config struct {
	Window        time.Duration // correlation proximity window
	MaxLineLength int
	MaxBlockLines int
	TopN          int
	Quick         bool
	Workers       int           // concurrent file scans (default 4)
	Timeout       time.Duration // whole-run deadline; 0 means none
	SampleLines   int           // lines sniffed for classification
	Verbosity     compactor.Verbosity
}

// DefaultWorkers is the scan concurrency used when Config.Workers is zero.
const DefaultWorkers = 4

// Input names the files of one run.
type Input struct {
	Paths   []string
	Include []string // base-name globs; empty means every file
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records scan metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithOpener replaces source.Open for reading files.
func WithOpener(open scanner.Opener) Option {
	return func(e *Engine) { e.open = open }
}

// Engine orchestrates the classify → scan → aggregate → correlate →
// assemble pipeline over a set of files. It is safe for concurrent runs;
// per-run state never outlives Analyze.
type Engine struct {
	cfg        Config
	catalog    *catalog.Catalog
	classifier *classifier.Classifier
	scanner    *scanner.Scanner
	correlator *correlate.Correlator
	open       scanner.Opener
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates an Engine over cat.
func New(cat *catalog.Catalog, cfg Config, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, ErrNilCatalog
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	e := &Engine{
		cfg:        cfg,
		catalog:    cat,
		classifier: classifier.New(cat, cfg.SampleLines),
		scanner: scanner.New(cat, scanner.Config{
			MaxLineLength: cfg.MaxLineLength,
			MaxBlockLines: cfg.MaxBlockLines,
			Quick:         cfg.Quick,
		}),
		correlator: correlate.New(correlate.Config{Window: cfg.Window}),
		open:       source.Open,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Catalog returns the engine's pattern catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Classify assigns a file to a component from its path and leading lines.
func (e *Engine) Classify(path, sample string) model.LogType {
	return e.classifier.Classify(path, sample)
}

// Analyze scans every input file concurrently, then aggregates, correlates
// and assembles the report. Files that cannot be read are reported as
// failed and do not stop the run. When ctx is cancelled or the configured
// timeout passes, files in flight stop early, correlation is skipped if it
// has not finished, and the partial report is marked truncated; this is not
// an error.
func (e *Engine) Analyze(ctx context.Context, in Input) (model.Report, error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	paths := e.selectPaths(in)
	results := make([]scanner.Result, len(paths))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i] = e.scanFile(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	// paths is sorted, so results merge in path order.
	var events []model.MatchEvent
	stats := make([]model.FileStats, 0, len(results))
	for _, res := range results {
		events = append(events, res.Events...)
		stats = append(stats, res.Stats)
	}

	events = aggregate.Dedup(events)
	findings := aggregate.Aggregate(events)
	chains, err := e.correlator.Correlate(ctx, events)
	if err != nil {
		e.logger.Warn("correlation stopped", "events", len(events), "error", err)
	}
	r := report.Assemble(findings, chains, stats, report.Options{
		TopN:      e.cfg.TopN,
		Verbosity: e.cfg.Verbosity,
		Quick:     e.cfg.Quick,
	})
	if err != nil {
		r.Truncated = true
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRun(r, elapsed)
	e.logger.Info("analysis complete",
		"files", len(paths),
		"events", r.Summary.TotalEvents,
		"findings", len(findings),
		"chains", len(chains),
		"anomalies", r.Summary.Anomalies,
		"truncated", r.Truncated,
		"duration", elapsed,
	)
	return r, nil
}

// selectPaths applies the include globs and returns unique paths sorted.
func (e *Engine) selectPaths(in Input) []string {
	var out []string
	for _, p := range in.Paths {
		if len(in.Include) > 0 && !matchAny(in.Include, filepath.Base(p)) {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

// scanFile classifies and scans one file. Failures are folded into the
// returned stats.
func (e *Engine) scanFile(ctx context.Context, path string) scanner.Result {
	start := time.Now()

	lt, err := e.classifyFile(path)
	if err != nil {
		e.logger.Warn("file unreadable", "file", path, "error", err)
		res := scanner.Result{Stats: model.FileStats{
			Path:    path,
			LogType: model.Unknown(),
			Status:  model.FileFailed,
			Reason:  err.Error(),
		}}
		e.metrics.ObserveFile(res.Stats, nil, time.Since(start))
		return res
	}

	res, err := e.scanner.Scan(ctx, path, e.open, lt)
	if err != nil {
		e.logger.Warn("scan failed", "file", path, "component", lt.Component, "error", err)
	}
	e.metrics.ObserveFile(res.Stats, res.Events, time.Since(start))
	e.logger.Debug("file scanned",
		"file", path,
		"component", lt.Component,
		"basis", lt.Basis,
		"lines", res.Stats.Lines,
		"events", res.Stats.Events,
		"anomalies", res.Stats.Anomalies.Total(),
		"status", res.Stats.Status,
		"duration", time.Since(start),
	)
	return res
}

func (e *Engine) classifyFile(path string) (model.LogType, error) {
	rc, err := e.open(path)
	if err != nil {
		return model.LogType{}, err
	}
	defer rc.Close()
	return e.classifier.Classify(path, e.classifier.Sample(rc)), nil
}
