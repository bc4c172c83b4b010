// Package compare runs a posting's requirements against a résumé's items
// and streams one result per requirement followed by a summary.
package compare

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/tables"
)

// Scorer measures how well a résumé item satisfies a requirement.
type Scorer interface {
	Score(ctx context.Context, requirement, item string) float64
}

// Categorizer assigns a requirement to a category.
type Categorizer interface {
	Categorize(text string) string
}

// Suggester proposes résumé improvements for unclear or missing requirements.
type Suggester interface {
	Suggest(ctx context.Context, requirement string, verdict gap.Verdict) []string
}

// Config holds the Comparator's dependencies. Tables, Scorer and
// Categorizer are required.
type Config struct {
	Tables      *tables.Tables
	Scorer      Scorer
	Categorizer Categorizer
	// Suggester may be nil, in which case results carry no suggestions.
	Suggester Suggester
	// Pacing is an optional pause between requirements.
	Pacing time.Duration
	Logger *zap.Logger
}

// Comparator is safe for concurrent use; each Run keeps its own state.
type Comparator struct {
	tables      *tables.Tables
	scorer      Scorer
	categorizer Categorizer
	suggester   Suggester
	pacing      time.Duration
	log         *zap.Logger
}

// New validates cfg and returns a Comparator.
func New(cfg Config) (*Comparator, error) {
	switch {
	case cfg.Tables == nil:
		return nil, errors.New("compare: tables are required")
	case cfg.Scorer == nil:
		return nil, errors.New("compare: scorer is required")
	case cfg.Categorizer == nil:
		return nil, errors.New("compare: categorizer is required")
	}
	return &Comparator{
		tables:      cfg.Tables,
		scorer:      cfg.Scorer,
		categorizer: cfg.Categorizer,
		suggester:   cfg.Suggester,
		pacing:      cfg.Pacing,
		log:         logger.OrNop(cfg.Logger),
	}, nil
}

// Run evaluates each requirement in order and passes a progress event and
// then an item event for each to emit, followed by one summary event.
//
// When ctx is cancelled Run stops before the next requirement, emits no
// summary and returns ctx.Err(). An error returned by emit also stops the
// run and is returned as is.
func (c *Comparator) Run(ctx context.Context, requirements, resume []string, emit func(gap.Event) error) error {
	runID := uuid.NewString()
	log := c.log.With(zap.String(logger.FieldComparison, runID))
	start := time.Now()

	var tally gap.Tally
	total := len(requirements)
	for i, req := range requirements {
		if err := ctx.Err(); err != nil {
			log.Info("comparison cancelled", zap.Int("done", i), zap.Int("total", total))
			return err
		}
		if i > 0 && c.pacing > 0 {
			select {
			case <-time.After(c.pacing):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := emit(gap.ProgressEvent(i+1, total)); err != nil {
			return err
		}

		res := c.evaluate(ctx, log, req, resume)
		if err := ctx.Err(); err != nil {
			log.Info("comparison cancelled", zap.Int("done", i), zap.Int("total", total))
			return err
		}
		tally.Add(res)
		if err := emit(gap.ItemEvent(res)); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	summary := tally.Summary(c.categoryInfo)
	log.Info("comparison finished",
		zap.Int("requirements", total),
		zap.Int("resume_items", len(resume)),
		zap.Int("matches", summary.Matches),
		zap.Int("unclear", summary.Unclear),
		zap.Int("missing", summary.Missing),
		zap.Duration("elapsed", time.Since(start)),
	)
	return emit(gap.SummaryEvent(summary))
}

// Compare runs the comparison in a goroutine and returns its events on an
// unbuffered channel, so the consumer sets the pace. The channel is closed
// when the run ends; a cancelled run closes it without a summary.
func (c *Comparator) Compare(ctx context.Context, requirements, resume []string) <-chan gap.Event {
	ch := make(chan gap.Event)
	go func() {
		defer close(ch)
		_ = c.Run(ctx, requirements, resume, func(e gap.Event) error {
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
	}()
	return ch
}

// evaluation is the partial state of one requirement. It survives a panic
// during scoring so the requirement can still be reported.
type evaluation struct {
	category string
	best     float64
	matched  string
}

func (c *Comparator) evaluate(ctx context.Context, log *zap.Logger, req string, resume []string) gap.MatchResult {
	ev := evaluation{category: tables.CategoryOther, best: -1}
	if c.scoreAll(ctx, log, req, resume, &ev) {
		log.Warn("requirement reported with best-effort score",
			zap.String("requirement", req), zap.Float64("score", max(ev.best, 0)))
	}

	confidence := max(ev.best, 0)
	th := c.tables.Threshold(ev.category)
	res := gap.MatchResult{
		ID:          uuid.NewString(),
		Category:    ev.category,
		Requirement: req,
		Verdict:     gap.Classify(confidence, th.Match, th.Unclear),
		Confidence:  confidence,
	}
	if res.Verdict != gap.VerdictMissing {
		res.Matched = ev.matched
	}
	if res.Verdict != gap.VerdictMatch {
		res.Suggestions = c.suggest(ctx, log, req, res.Verdict)
	}
	return res
}

// scoreAll categorizes req and keeps the best scoring résumé item. Ties keep
// the earlier item. It reports whether a panic was recovered.
func (c *Comparator) scoreAll(ctx context.Context, log *zap.Logger, req string, resume []string, ev *evaluation) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while scoring requirement", zap.String("requirement", req), zap.Any("panic", r))
			panicked = true
		}
	}()

	if cat := c.categorizer.Categorize(req); tables.IsCategory(cat) {
		ev.category = cat
	}
	for _, item := range resume {
		if ctx.Err() != nil {
			return false
		}
		if s := c.scorer.Score(ctx, req, item); s > ev.best {
			ev.best, ev.matched = s, item
		}
	}
	return false
}

func (c *Comparator) suggest(ctx context.Context, log *zap.Logger, req string, v gap.Verdict) (out []string) {
	if c.suggester == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while writing suggestions", zap.String("requirement", req), zap.Any("panic", r))
			out = nil
		}
	}()
	return c.suggester.Suggest(ctx, req, v)
}

func (c *Comparator) categoryInfo(name string) (string, string) {
	if cat, ok := c.tables.Category(name); ok {
		return cat.Description, cat.Color
	}
	return "", ""
}
