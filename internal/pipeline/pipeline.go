package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hejijunhao/sleuth/internal/engine"
	"github.com/hejijunhao/sleuth/internal/model"
	"github.com/hejijunhao/sleuth/internal/output"
	"github.com/hejijunhao/sleuth/internal/source"
)

// Analyzer turns a set of files into a report.
type Analyzer interface {
	Analyze(ctx context.Context, in engine.Input) (model.Report, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithInclude restricts analysis to files whose base name matches one of
// the globs.
func WithInclude(globs ...string) Option {
	return func(p *Pipeline) { p.include = globs }
}

// Pipeline connects a source, an analyzer, and an output.
type Pipeline struct {
	source   source.Source
	analyzer Analyzer
	output   output.Output
	include  []string
	logger   *slog.Logger
}

// New creates a Pipeline from the given components.
func New(src source.Source, a Analyzer, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   src,
		analyzer: a,
		output:   out,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run discovers the input files, analyzes them, and writes the report.
// A run cut short by ctx still writes its partial report.
func (p *Pipeline) Run(ctx context.Context, cfg source.Config) (model.Report, error) {
	log := p.logger.With("run_id", uuid.NewString())
	start := time.Now()

	paths, err := p.source.Discover(ctx, cfg)
	if err != nil {
		return model.Report{}, fmt.Errorf("pipeline discover: %w", err)
	}
	if len(paths) == 0 {
		log.Warn("no input files", "provider", cfg.Provider, "root", cfg.Root)
	}
	log.Debug("files discovered", "files", len(paths))

	r, err := p.analyzer.Analyze(ctx, engine.Input{Paths: paths, Include: p.include})
	if err != nil {
		return model.Report{}, fmt.Errorf("pipeline analyze: %w", err)
	}

	if err := p.output.Write(context.WithoutCancel(ctx), r); err != nil {
		return r, fmt.Errorf("pipeline output: %w", err)
	}
	log.Info("report written",
		"files", len(r.Files),
		"findings", len(r.Findings),
		"chains", len(r.Chains),
		"truncated", r.Truncated,
		"duration", time.Since(start),
	)
	return r, nil
}

// Watch runs the pipeline now and then every interval, writing a report
// only when it differs from the last one written. Blocks until the context
// is cancelled or a run fails.
func (p *Pipeline) Watch(ctx context.Context, cfg source.Config, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("pipeline watch: interval must be positive")
	}
	var last []byte
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if err := p.watchOnce(ctx, cfg, &last); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (p *Pipeline) watchOnce(ctx context.Context, cfg source.Config, last *[]byte) error {
	paths, err := p.source.Discover(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline discover: %w", err)
	}
	r, err := p.analyzer.Analyze(ctx, engine.Input{Paths: paths, Include: p.include})
	if err != nil {
		return fmt.Errorf("pipeline analyze: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("pipeline fingerprint: %w", err)
	}
	if bytes.Equal(data, *last) {
		p.logger.Debug("report unchanged", "files", len(paths))
		return nil
	}
	if err := p.output.Write(ctx, r); err != nil {
		return fmt.Errorf("pipeline output: %w", err)
	}
	*last = data
	p.logger.Info("report written", "files", len(r.Files), "findings", len(r.Findings), "chains", len(r.Chains))
	return nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
