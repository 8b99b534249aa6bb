package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hejijunhao/sleuth/internal/config"
	"github.com/hejijunhao/sleuth/internal/engine"
	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/logging"
	"github.com/hejijunhao/sleuth/internal/metrics"
	"github.com/hejijunhao/sleuth/internal/output"
	"github.com/hejijunhao/sleuth/internal/output/file"
	"github.com/hejijunhao/sleuth/internal/output/multi"
	"github.com/hejijunhao/sleuth/internal/output/s3"
	"github.com/hejijunhao/sleuth/internal/output/stdout"
	"github.com/hejijunhao/sleuth/internal/pipeline"
	"github.com/hejijunhao/sleuth/internal/source"

	// Register source implementations.
	_ "github.com/hejijunhao/sleuth/internal/source/dir"
	_ "github.com/hejijunhao/sleuth/internal/source/files"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sleuth: %v\n", err)
		config.Usage(os.Stderr)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Printf("sleuth %s\n", config.Version)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sleuth: invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	logger := logging.Init(os.Stderr, cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
	if err := run(cfg, logger); err != nil {
		logger.Error("sleuth failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	cat, err := loadCatalog(cfg.Engine.CatalogPath)
	if err != nil {
		return err
	}
	logger.Debug("catalog loaded", "version", cat.Version(), "profiles", len(cat.Profiles()))

	var m *metrics.Metrics
	if cfg.Metrics != "" {
		m = metrics.New()
	}

	eng, err := engine.New(cat, engine.Config{
		Window:        cfg.Engine.Window,
		MaxLineLength: cfg.Engine.MaxLineLength,
		MaxBlockLines: cfg.Engine.MaxBlockLines,
		TopN:          cfg.Engine.TopN,
		Quick:         cfg.Engine.Quick,
		Workers:       cfg.Engine.Workers,
		Timeout:       cfg.Engine.Timeout,
		SampleLines:   cfg.Engine.SampleLines,
		Verbosity:     cfg.Verbosity(),
	}, engine.WithLogger(logger), engine.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	// Set up graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := buildOutput(ctx, cfg)
	if err != nil {
		return err
	}

	ctor, err := source.Get(cfg.Source.Provider)
	if err != nil {
		return err
	}

	p := pipeline.New(ctor(), eng, out,
		pipeline.WithLogger(logger),
		pipeline.WithInclude(cfg.Source.Include...),
	)
	defer p.Close()

	srcCfg := source.Config{
		Provider: cfg.Source.Provider,
		Root:     cfg.Source.Root,
		Files:    cfg.Source.Files,
		Hidden:   cfg.Source.Hidden,
	}

	if cfg.Watch > 0 {
		logger.Info("watching", "source", cfg.Source.Provider, "interval", cfg.Watch)
		err = p.Watch(ctx, srcCfg, cfg.Watch)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		_, err = p.Run(ctx, srcCfg)
	}
	if err != nil {
		return err
	}

	if m != nil {
		if err := m.WriteTextfile(cfg.Metrics); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// Output constructors, replaced in tests.
var (
	newFileOutput = func(path string, pretty bool) (output.Output, error) {
		return file.New(path, file.WithPretty(pretty))
	}
	newS3Output = func(ctx context.Context, cfg s3.Config) (output.Output, error) {
		return s3.New(ctx, cfg)
	}
)

// buildOutput assembles every configured report destination. When one fails
// to build, those already built are closed.
func buildOutput(ctx context.Context, cfg config.Config) (out output.Output, err error) {
	var outs []output.Output
	defer func() {
		if err == nil {
			return
		}
		for _, o := range outs {
			err = errors.Join(err, o.Close())
		}
	}()

	if !cfg.Output.Quiet {
		format, err := output.ParseFormat(cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		outs = append(outs, stdout.New(format, cfg.Output.Pretty))
	}
	if cfg.Output.File != "" {
		f, err := newFileOutput(cfg.Output.File, cfg.Output.Pretty)
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	if cfg.Output.S3Bucket != "" {
		u, err := newS3Output(ctx, s3.Config{
			Bucket:  cfg.Output.S3Bucket,
			Prefix:  cfg.Output.S3Prefix,
			Region:  cfg.Output.S3Region,
			Retries: cfg.Output.S3Retries,
		})
		if err != nil {
			return nil, err
		}
		outs = append(outs, u)
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
