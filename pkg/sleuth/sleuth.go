package sleuth

import (
	"context"
	"fmt"

	"github.com/hejijunhao/sleuth/internal/engine"
	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/engine/compactor"
	"github.com/hejijunhao/sleuth/internal/source"
	"github.com/hejijunhao/sleuth/internal/source/dir"
)

// LogType is the classification of one file.
type LogType struct {
	Component     string // "unknown" when nothing matched
	Basis         string // glob, content, or none
	TimestampHint string // first timestamp format seen in the sample
}

// Analyzer runs support-bundle analyses against one pattern catalog.
// Safe for concurrent use.
type Analyzer struct {
	engine *engine.Engine
}

// New creates an Analyzer. The catalog is compiled once here; an invalid
// catalog or option fails the whole call.
func New(opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := loadCatalog(o)
	if err != nil {
		return nil, fmt.Errorf("sleuth: %w", err)
	}
	v, err := compactor.ParseVerbosity(o.verbosity)
	if err != nil {
		return nil, fmt.Errorf("sleuth: %w", err)
	}

	eng, err := engine.New(cat, engine.Config{
		Window:        o.window,
		MaxLineLength: o.maxLineLength,
		MaxBlockLines: o.maxBlockLines,
		TopN:          o.topN,
		Quick:         o.quick,
		Workers:       o.workers,
		Verbosity:     v,
	}, engine.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("sleuth: %w", err)
	}
	return &Analyzer{engine: eng}, nil
}

func loadCatalog(o options) (*catalog.Catalog, error) {
	switch {
	case o.catalogData != nil:
		return catalog.Parse(o.catalogData)
	case o.catalogPath != "":
		return catalog.LoadFile(o.catalogPath)
	default:
		return catalog.Default()
	}
}

// Analyze scans the given files and returns the report. Unreadable files are
// listed in Report.Files with status "failed" and do not fail the call.
// Cancelling ctx returns the partial report with Truncated set.
func (a *Analyzer) Analyze(ctx context.Context, paths ...string) (Report, error) {
	m, err := a.engine.Analyze(ctx, engine.Input{Paths: paths})
	if err != nil {
		return Report{}, fmt.Errorf("sleuth: %w", err)
	}
	return reportFromModel(m), nil
}

// AnalyzeDir analyzes every regular file under root. When include globs are
// given, only files whose base name matches one of them are scanned.
func (a *Analyzer) AnalyzeDir(ctx context.Context, root string, include ...string) (Report, error) {
	var src dir.Source
	paths, err := src.Discover(ctx, source.Config{Provider: "dir", Root: root})
	if err != nil {
		return Report{}, fmt.Errorf("sleuth: %w", err)
	}
	m, err := a.engine.Analyze(ctx, engine.Input{Paths: paths, Include: include})
	if err != nil {
		return Report{}, fmt.Errorf("sleuth: %w", err)
	}
	return reportFromModel(m), nil
}

// Classify assigns a file to a component from its path and leading lines,
// without scanning it.
func (a *Analyzer) Classify(path, sample string) LogType {
	lt := a.engine.Classify(path, sample)
	return LogType{
		Component:     lt.Component,
		Basis:         string(lt.Basis),
		TimestampHint: lt.TimestampHint,
	}
}
