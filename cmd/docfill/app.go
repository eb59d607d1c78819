package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-docfill"
	"github.com/goliatone/go-docfill/internal/config"
	"github.com/goliatone/go-docfill/internal/metrics"
	"github.com/goliatone/go-docfill/pkg/binding"
	"github.com/goliatone/go-docfill/pkg/convert"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
	"github.com/goliatone/go-docfill/pkg/render"
	"github.com/goliatone/go-docfill/pkg/store"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dir        string
	examples   bool
	logLevel   string
}

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	store     store.Store
	converter *convert.Converter
	metrics   *metrics.Collector
	gen       *orchestrator.Orchestrator
}

func newApp(ctx context.Context, opts *globalOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dir != "" {
		cfg.Store.Dir = opts.dir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  cfg.Logger(logOut),
		metrics: metrics.New(),
	}

	storeOptions := cfg.StoreOptions(a.logger)
	if opts.examples {
		storeOptions = append(storeOptions,
			store.WithFileSystem(docfill.ExampleTemplates()),
			store.WithRoot(""),
			store.WithRefresh(store.RefreshStartup),
		)
	}
	a.store, err = docfill.NewStore(ctx, storeOptions...)
	if err != nil {
		return nil, err
	}

	a.converter, err = docfill.NewConverter(docfill.ConverterConfig{
		SofficePath: cfg.Convert.SofficePath,
		Concurrency: cfg.Convert.Concurrency,
		Timeout:     cfg.Convert.Timeout,
		Chromium:    cfg.Convert.ChromiumEnabled,
		ChromiumBin: cfg.Convert.ChromiumBin,
		ChromiumURL: cfg.Convert.ChromiumURL,
	}, a.logger)
	if err != nil {
		return nil, errors.Join(err, a.store.Close())
	}

	engine, err := render.New(
		render.WithDateLayout(cfg.Render.DateLayout),
		render.WithLogger(a.logger),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.gen, err = orchestrator.New(
		orchestrator.WithStore(a.store),
		orchestrator.WithBinder(binding.NewBinder(binding.WithChoicePolicy(cfg.ChoicePolicy()))),
		orchestrator.WithRenderer(engine),
		orchestrator.WithConverter(a.converter),
		orchestrator.WithObserver(a.metrics),
		orchestrator.WithLogger(a.logger),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

// Close releases the store and any conversion backends.
func (a *app) Close() error {
	var errs []error
	if a.converter != nil {
		if err := a.converter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close converter: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
