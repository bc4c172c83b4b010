// Package similarity scores how well a résumé item satisfies a posting
// requirement. Cheap deterministic checks run first; embedding signals are
// only consulted when none of them decides.
package similarity

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/skillgap/internal/embedcache"
	"github.com/kalambet/skillgap/internal/lexical"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/tables"
)

// Default blend weights. Absent embedding signals are dropped and the rest
// renormalized to sum to 1.
const (
	PrimaryEmbeddingWeight   = 0.40
	SecondaryEmbeddingWeight = 0.20
	TFIDFWeight              = 0.25
	OverlapWeight            = 0.15
)

const defaultEmbedTimeout = 10 * time.Second

// Signal is an embedding source with its blend weight.
type Signal struct {
	Source Source
	Weight float64
}

// DefaultSignals assigns the primary and secondary weights, skipping nil sources.
func DefaultSignals(primary, secondary Source) []Signal {
	var out []Signal
	if primary != nil {
		out = append(out, Signal{Source: primary, Weight: PrimaryEmbeddingWeight})
	}
	if secondary != nil {
		out = append(out, Signal{Source: secondary, Weight: SecondaryEmbeddingWeight})
	}
	return out
}

// Config holds the Scorer's dependencies.
type Config struct {
	Tables  *tables.Tables
	Cache   *embedcache.Cache
	Signals []Signal
	// EmbedTimeout bounds each embedding call. Zero means 10s.
	EmbedTimeout time.Duration
	Logger       *zap.Logger
}

// Match is a score together with the strategy that produced it.
type Match struct {
	Score    float64 `json:"score"`
	Strategy string  `json:"strategy"`
}

// Scorer is safe for concurrent use.
type Scorer struct {
	tables     *tables.Tables
	norm       *lexical.Normalizer
	cache      *embedcache.Cache
	signals    []Signal
	tfidfW     float64
	overlapW   float64
	timeout    time.Duration
	strategies []Strategy
	log        *zap.Logger
}

// New builds a Scorer. Tables are required.
func New(cfg Config) (*Scorer, error) {
	if cfg.Tables == nil {
		return nil, errors.New("similarity: tables are required")
	}
	s := &Scorer{
		tables:  cfg.Tables,
		norm:    cfg.Tables.Normalizer(),
		cache:   cfg.Cache,
		timeout: cfg.EmbedTimeout,
		log:     logger.OrNop(cfg.Logger),
	}
	if s.cache == nil {
		s.cache = embedcache.New(nil, embedcache.WithNormalizer(s.norm.Normalize))
	}
	if s.timeout <= 0 {
		s.timeout = defaultEmbedTimeout
	}

	total := TFIDFWeight + OverlapWeight
	for _, sig := range cfg.Signals {
		if sig.Source == nil || sig.Weight <= 0 {
			continue
		}
		s.signals = append(s.signals, sig)
		total += sig.Weight
	}
	for i := range s.signals {
		s.signals[i].Weight /= total
	}
	s.tfidfW = TFIDFWeight / total
	s.overlapW = OverlapWeight / total

	s.strategies = []Strategy{
		exactStrategy{},
		containmentStrategy{},
		overlapStrategy{},
		aliasStrategy{aliases: cfg.Tables},
		blendedStrategy{s: s},
		fallbackStrategy{},
	}
	return s, nil
}

// Normalize applies the shared text normalization.
func (s *Scorer) Normalize(text string) string {
	return s.norm.Normalize(text)
}

// Score returns the similarity of a and b in [0,1]. It never fails.
func (s *Scorer) Score(ctx context.Context, a, b string) float64 {
	return s.Explain(ctx, a, b).Score
}

// Explain scores a and b and reports which strategy decided.
func (s *Scorer) Explain(ctx context.Context, a, b string) Match {
	p := newPair(s.norm.Normalize(a), s.norm.Normalize(b))
	if p.a == "" || p.b == "" {
		return Match{Score: 0, Strategy: StrategyEmpty}
	}
	for _, st := range s.strategies {
		if score, ok := st.Score(ctx, p); ok {
			return Match{Score: clamp(score), Strategy: st.Name()}
		}
	}
	return Match{Score: clamp(p.overlap), Strategy: StrategyFallback}
}

// blend computes the weighted signal mix and applies context boosts.
func (s *Scorer) blend(ctx context.Context, p pair) (float64, error) {
	var score float64
	for _, sig := range s.signals {
		va, err := s.embed(ctx, sig.Source, p.a)
		if err != nil {
			return 0, err
		}
		vb, err := s.embed(ctx, sig.Source, p.b)
		if err != nil {
			return 0, err
		}
		score += sig.Weight * max(0, cosine(va, vb))
	}
	score += s.tfidfW * lexical.TFIDFCosine(p.a, p.b)
	score += s.overlapW * p.overlap
	return s.enhance(p, score), nil
}

// enhance applies the multiplicative context boosts, each capped at 1.
func (s *Scorer) enhance(p pair, score float64) float64 {
	switch {
	case p.overlap >= 0.25:
		score = math.Min(1, score*1.15)
	case p.overlap >= 0.15:
		score = math.Min(1, score*1.05)
	}
	if s.tables.SharedAliasGroup(p.a, p.b) {
		score = math.Min(1, score*1.15)
	}
	if s.tables.SharedCluster(p.a, p.b) {
		score = math.Min(1, score*1.10)
	}
	return score
}

func (s *Scorer) embed(ctx context.Context, src Source, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.cache.GetOrCompute(ctx, text, src.ID(), src.Embed)
}

// Warm computes embeddings for texts ahead of scoring so that the
// comparison loop mostly hits the cache. Failures are logged and skipped.
func (s *Scorer) Warm(ctx context.Context, texts []string) {
	if len(s.signals) == 0 || len(texts) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(4)
	for _, sig := range s.signals {
		for _, text := range texts {
			normalized := s.norm.Normalize(text)
			if normalized == "" {
				continue
			}
			src := sig.Source
			g.Go(func() error {
				if _, err := s.embed(ctx, src, normalized); err != nil {
					s.log.Debug("warmup embedding failed", zap.String("source", src.ID()), zap.Error(err))
				}
				return nil
			})
		}
	}
	g.Wait()
}

// HasEmbeddings reports whether any embedding signal is configured.
func (s *Scorer) HasEmbeddings() bool {
	return len(s.signals) > 0
}

// CacheStats exposes the embedding cache counters.
func (s *Scorer) CacheStats() embedcache.Stats {
	return s.cache.Stats()
}

// cosine computes dot(a,b) / (|a|·|b|), returning 0 for mismatched or zero vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0
	}
	return dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
