package similarity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/lexical"
)

// Strategy names, reported by Explain.
const (
	StrategyEmpty       = "empty"
	StrategyExact       = "exact"
	StrategyContainment = "containment"
	StrategyOverlap     = "overlap"
	StrategyAlias       = "alias"
	StrategyBlended     = "blended"
	StrategyFallback    = "fallback"
)

const (
	containmentScore = 0.9
	overlapCutoff    = 0.3
	overlapFloor     = 0.6
	aliasScore       = 0.82
)

// pair is the normalized input shared by every strategy.
type pair struct {
	a, b    string
	overlap float64
}

func newPair(a, b string) pair {
	return pair{a: a, b: b, overlap: lexical.Jaccard(a, b)}
}

// Strategy scores a pair or declines. Strategies run in order and the first
// one that accepts decides the score.
type Strategy interface {
	Name() string
	Score(ctx context.Context, p pair) (float64, bool)
}

type exactStrategy struct{}

func (exactStrategy) Name() string { return StrategyExact }

func (exactStrategy) Score(_ context.Context, p pair) (float64, bool) {
	return 1, p.a == p.b
}

type containmentStrategy struct{}

func (containmentStrategy) Name() string { return StrategyContainment }

func (containmentStrategy) Score(_ context.Context, p pair) (float64, bool) {
	return containmentScore, strings.Contains(p.a, p.b) || strings.Contains(p.b, p.a)
}

type overlapStrategy struct{}

func (overlapStrategy) Name() string { return StrategyOverlap }

func (overlapStrategy) Score(_ context.Context, p pair) (float64, bool) {
	if p.overlap <= overlapCutoff {
		return 0, false
	}
	return max(p.overlap, overlapFloor), true
}

// aliasMatcher reports whether two normalized strings each mention a term
// (canonical or alias, word-aligned) of the same alias group.
type aliasMatcher interface {
	SharedAliasGroup(a, b string) bool
}

type aliasStrategy struct {
	aliases aliasMatcher
}

func (aliasStrategy) Name() string { return StrategyAlias }

func (s aliasStrategy) Score(_ context.Context, p pair) (float64, bool) {
	return aliasScore, s.aliases.SharedAliasGroup(p.a, p.b)
}

// blendedStrategy declines when an embedding call fails so that the
// fallback strategy answers for this call.
type blendedStrategy struct {
	s *Scorer
}

func (blendedStrategy) Name() string { return StrategyBlended }

func (b blendedStrategy) Score(ctx context.Context, p pair) (float64, bool) {
	score, err := b.s.blend(ctx, p)
	if err != nil {
		b.s.log.Debug("embedding signal failed, using word overlap", zap.Error(err))
		return 0, false
	}
	return score, true
}

type fallbackStrategy struct{}

func (fallbackStrategy) Name() string { return StrategyFallback }

func (fallbackStrategy) Score(_ context.Context, p pair) (float64, bool) {
	return p.overlap, true
}
