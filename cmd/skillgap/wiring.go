package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/categorize"
	"github.com/kalambet/skillgap/internal/compare"
	"github.com/kalambet/skillgap/internal/config"
	"github.com/kalambet/skillgap/internal/embedcache"
	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/extract"
	"github.com/kalambet/skillgap/internal/interview"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/quota"
	"github.com/kalambet/skillgap/internal/similarity"
	"github.com/kalambet/skillgap/internal/storage"
	"github.com/kalambet/skillgap/internal/suggest"
	"github.com/kalambet/skillgap/internal/tables"
)

// appOptions controls which parts of the app are built.
type appOptions struct {
	// offline skips every inference engine; extraction falls back to
	// keyword scanning and scoring to lexical signals.
	offline bool
	// progress receives model pull progress. Nil skips the readiness check.
	progress io.Writer
}

// app is the fully wired comparison stack.
type app struct {
	cfg         config.Config
	log         *zap.Logger
	tables      *tables.Tables
	store       *storage.Store
	scorer      *similarity.Scorer
	categorizer *categorize.Categorizer
	analyzer    *pipeline.Analyzer
	quota       *quota.Service
	coach       *interview.Coach
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, opts appOptions) (*app, error) {
	tbl, err := tables.Load(cfg.Scoring.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a := &app{cfg: cfg, log: log, tables: tbl, store: store}

	if err := a.build(ctx, opts); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, opts appOptions) error {
	var (
		chat               engine.Engine
		chatModel          string
		primary, secondary similarity.Source
	)
	if !opts.offline {
		engines := newEngineSet(a.cfg)
		var err error
		var provider string
		provider, chatModel = engine.ParseModelRef(a.cfg.Models.Chat)
		if chat, err = engines.get(ctx, provider); err != nil {
			return err
		}
		if primary, err = engines.source(ctx, a.cfg.Models.Embed); err != nil {
			return err
		}
		if secondary, err = engines.source(ctx, a.cfg.Models.SecondaryEmbed); err != nil {
			return err
		}
		if opts.progress != nil {
			if err := engines.ensureReady(ctx, opts.progress, a.cfg); err != nil {
				return err
			}
		}
		a.log.Info("inference configured",
			logger.CommonFields(chat.Name(), chatModel)...)
	}

	cache := embedcache.New(a.store,
		embedcache.WithLogger(a.log),
		embedcache.WithNormalizer(a.tables.Normalizer().Normalize),
		embedcache.WithComputeTimeout(a.cfg.Scoring.EmbedTimeout),
	)
	scorer, err := similarity.New(similarity.Config{
		Tables:       a.tables,
		Cache:        cache,
		Signals:      similarity.DefaultSignals(primary, secondary),
		EmbedTimeout: a.cfg.Scoring.EmbedTimeout,
		Logger:       a.log,
	})
	if err != nil {
		return err
	}
	a.scorer = scorer
	a.categorizer = categorize.New(a.tables)

	extractor := extract.NewExtractor(chat, chatModel, a.tables,
		extract.WithTimeout(a.cfg.Scoring.ExtractTimeout),
		extract.WithLogger(a.log),
	)
	suggester := suggest.New(chat, chatModel, a.tables, suggest.WithLogger(a.log))
	a.coach = interview.New(chat, chatModel, a.tables,
		interview.WithExtractor(extractor),
		interview.WithLogger(a.log),
	)

	comparator, err := compare.New(compare.Config{
		Tables:      a.tables,
		Scorer:      scorer,
		Categorizer: a.categorizer,
		Suggester:   suggester,
		Pacing:      a.cfg.Scoring.Pacing,
		Logger:      a.log,
	})
	if err != nil {
		return err
	}

	a.analyzer, err = pipeline.New(pipeline.Config{
		Extractor: extractor,
		Warmer:    scorer,
		Runner:    comparator,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	a.quota = quota.NewService(a.store,
		quota.WithWindow(a.cfg.Quota.Window),
		quota.WithLogger(a.log),
	)
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// engineSet creates at most one engine per provider.
type engineSet struct {
	opts    engine.Options
	engines map[string]engine.Engine
}

func newEngineSet(cfg config.Config) *engineSet {
	return &engineSet{
		opts: engine.Options{
			OllamaBaseURL: cfg.Ollama.BaseURL,
			GeminiAPIKey:  cfg.Gemini.APIKey,
		},
		engines: make(map[string]engine.Engine),
	}
}

func (s *engineSet) get(ctx context.Context, provider string) (engine.Engine, error) {
	if e, ok := s.engines[provider]; ok {
		return e, nil
	}
	e, err := engine.New(ctx, provider, s.opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", provider, err)
	}
	s.engines[provider] = e
	return e, nil
}

// source returns the embedding source for a model reference, or nil when
// ref is empty. The returned interface is a true nil in that case.
func (s *engineSet) source(ctx context.Context, ref string) (similarity.Source, error) {
	if ref == "" {
		return nil, nil
	}
	provider, model := engine.ParseModelRef(ref)
	e, err := s.get(ctx, provider)
	if err != nil {
		return nil, err
	}
	return similarity.NewEmbedder(e, model), nil
}

// ensureReady checks every engine in use and pulls missing models.
func (s *engineSet) ensureReady(ctx context.Context, w io.Writer, cfg config.Config) error {
	byProvider := make(map[string][]string)
	for _, ref := range []string{cfg.Models.Chat, cfg.Models.Embed, cfg.Models.SecondaryEmbed} {
		if ref == "" {
			continue
		}
		provider, model := engine.ParseModelRef(ref)
		byProvider[provider] = append(byProvider[provider], model)
	}
	var errs []error
	for provider, models := range byProvider {
		e, ok := s.engines[provider]
		if !ok {
			continue
		}
		if err := engine.EnsureReady(ctx, e, w, models...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
