// Package suggest writes short résumé improvement suggestions for
// requirements that were judged unclear or missing.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/extract"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/tables"
)

const (
	defaultTimeout = 15 * time.Second
	defaultMax     = 3
	minRunes       = 8
	maxRunes       = 240
	placeholder    = "{requirement}"
)

const systemPrompt = `You are a career coach reviewing a résumé against a job posting. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Give at most %d concrete suggestions for improving the résumé on the given requirement.
- Each suggestion is one short, practical sentence.
- Do not repeat the requirement verbatim as a suggestion.`

// Suggester asks an LLM for suggestions and falls back to canned ones keyed
// by the requirement kind.
type Suggester struct {
	client  extract.Chatter
	model   string
	tables  *tables.Tables
	timeout time.Duration
	max     int
	log     *zap.Logger
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithTimeout bounds the chat call.
func WithTimeout(d time.Duration) Option {
	return func(s *Suggester) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMax sets the maximum number of suggestions per requirement.
func WithMax(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Suggester) { s.log = logger.OrNop(l) }
}

// New creates a Suggester. A nil client means static suggestions only.
func New(client extract.Chatter, model string, t *tables.Tables, opts ...Option) *Suggester {
	s := &Suggester{
		client:  client,
		model:   model,
		tables:  t,
		timeout: defaultTimeout,
		max:     defaultMax,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to the configured number of suggestions. Matched
// requirements get none. It never fails.
func (s *Suggester) Suggest(ctx context.Context, requirement string, verdict gap.Verdict) []string {
	if verdict == gap.VerdictMatch || strings.TrimSpace(requirement) == "" {
		return nil
	}
	if s.client != nil {
		out, err := s.fromModel(ctx, requirement, verdict)
		if err != nil {
			s.log.Debug("suggestion generation failed, using static suggestions",
				zap.String(logger.FieldModel, s.model), zap.Error(err))
		} else if len(out) > 0 {
			return out
		}
	}
	return s.Static(requirement)
}

func (s *Suggester) fromModel(ctx context.Context, requirement string, verdict gap.Verdict) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []engine.Message{
		{Role: engine.RoleSystem, Content: fmt.Sprintf(systemPrompt, s.max)},
		{Role: engine.RoleUser, Content: fmt.Sprintf("Requirement: %q\nStatus on the résumé: %s", requirement, verdict)},
	}
	raw, err := s.client.Chat(ctx, s.model, messages, suggestionsSchema())
	if err != nil {
		return nil, err
	}
	return s.clean(extract.ParseItems(raw)), nil
}

// Static returns canned suggestions for the first requirement kind whose
// keywords appear in the requirement, or the generic set.
func (s *Suggester) Static(requirement string) []string {
	templates := s.tables.GenericSuggestions
	if kind, ok := s.tables.SuggestionKindFor(s.tables.Normalizer().Normalize(requirement)); ok {
		templates = kind.Suggestions
	}
	subject := strings.TrimSpace(requirement)
	out := make([]string, 0, s.max)
	for _, tpl := range templates {
		out = append(out, strings.ReplaceAll(tpl, placeholder, subject))
		if len(out) == s.max {
			break
		}
	}
	return out
}

func (s *Suggester) clean(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, s.max)
	for _, it := range items {
		it = strings.Join(strings.Fields(it), " ")
		n := len([]rune(it))
		if n < minRunes || n > maxRunes {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == s.max {
			break
		}
	}
	return out
}

func suggestionsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"items": {
				Type:        "array",
				Description: "Short practical suggestions, one per entry",
				Items:       &engine.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"items"},
	}
}
