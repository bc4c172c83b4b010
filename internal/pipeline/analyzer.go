// Package pipeline runs a full analysis: requirement extraction from both
// documents, embedding warmup and the comparison stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/logger"
)

// Extractor turns a document into requirement items.
type Extractor interface {
	Extract(ctx context.Context, text, domainHint string) []string
}

// Warmer precomputes embeddings for the given texts.
type Warmer interface {
	Warm(ctx context.Context, texts []string)
}

// Runner compares requirement lists and emits the resulting events.
type Runner interface {
	Run(ctx context.Context, requirements, resume []string, emit func(gap.Event) error) error
}

// Request is one analysis: the posting and résumé texts plus an optional
// job domain hint that biases extraction.
type Request struct {
	Posting    string `json:"offer_text"`
	Resume     string `json:"cv_text"`
	DomainHint string `json:"job_category,omitempty"`
}

// Result is the collected outcome of a non-streaming analysis.
type Result struct {
	Requirements []string          `json:"requirements"`
	ResumeItems  []string          `json:"resumeItems"`
	Items        []gap.MatchResult `json:"items"`
	Summary      gap.Summary       `json:"summary"`
}

// Config holds the Analyzer's dependencies. Warmer may be nil.
type Config struct {
	Extractor Extractor
	Warmer    Warmer
	Runner    Runner
	Logger    *zap.Logger
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	extractor Extractor
	warmer    Warmer
	runner    Runner
	log       *zap.Logger
}

// New creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Extractor == nil || cfg.Runner == nil {
		return nil, errors.New("pipeline: extractor and runner are required")
	}
	return &Analyzer{
		extractor: cfg.Extractor,
		warmer:    cfg.Warmer,
		runner:    cfg.Runner,
		log:       logger.OrNop(cfg.Logger),
	}, nil
}

// Analyze runs the pipeline and passes every event to emit:
//  1. Extract requirement items from the posting and the résumé concurrently
//  2. Warm the embedding cache for every extracted item
//  3. Stream the comparison (progress, items, summary)
//  4. Emit a complete event
//
// A cancelled ctx ends the run without a summary or complete event.
func (a *Analyzer) Analyze(ctx context.Context, req Request, emit func(gap.Event) error) error {
	_, _, err := a.run(ctx, req, emit)
	return err
}

func (a *Analyzer) run(ctx context.Context, req Request, emit func(gap.Event) error) (requirements, resumeItems []string, err error) {
	start := time.Now()

	if err := emit(gap.StatusEvent("Extracting requirements from the job posting and the résumé")); err != nil {
		return nil, nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		requirements = a.extractor.Extract(gctx, req.Posting, req.DomainHint)
		return nil
	})
	g.Go(func() error {
		resumeItems = a.extractor.Extract(gctx, req.Resume, req.DomainHint)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	a.log.Debug("extraction finished",
		zap.Int("requirements", len(requirements)),
		zap.Int("resume_items", len(resumeItems)),
		zap.Duration("elapsed", time.Since(start)),
	)

	msg := fmt.Sprintf("Found %d requirements in the posting and %d items in the résumé", len(requirements), len(resumeItems))
	if err := emit(gap.StatusEvent(msg)); err != nil {
		return nil, nil, err
	}

	if a.warmer != nil && len(requirements) > 0 && len(resumeItems) > 0 {
		if err := emit(gap.StatusEvent("Preparing semantic analysis")); err != nil {
			return nil, nil, err
		}
		a.warmer.Warm(ctx, append(append([]string(nil), requirements...), resumeItems...))
	}

	if err := emit(gap.StatusEvent("Comparing requirements")); err != nil {
		return nil, nil, err
	}
	if err := a.runner.Run(ctx, requirements, resumeItems, emit); err != nil {
		return nil, nil, err
	}
	return requirements, resumeItems, emit(gap.CompleteEvent())
}

// Stream runs Analyze in a goroutine and returns its events on an
// unbuffered channel that is closed when the run ends.
func (a *Analyzer) Stream(ctx context.Context, req Request) <-chan gap.Event {
	ch := make(chan gap.Event)
	go func() {
		defer close(ch)
		err := a.Analyze(ctx, req, func(e gap.Event) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case ch <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			a.log.Warn("analysis stream ended early", zap.Error(err))
		}
	}()
	return ch
}

// Collect runs Analyze and gathers the results.
func (a *Analyzer) Collect(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Items: []gap.MatchResult{}}
	var gotSummary bool
	requirements, resumeItems, err := a.run(ctx, req, func(e gap.Event) error {
		switch e.Type {
		case gap.EventItem:
			res.Items = append(res.Items, *e.Item)
		case gap.EventSummary:
			res.Summary = *e.Summary
			gotSummary = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !gotSummary {
		return nil, errors.New("pipeline: analysis ended without a summary")
	}
	res.Requirements, res.ResumeItems = requirements, resumeItems
	return res, nil
}
