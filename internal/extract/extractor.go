// Package extract turns a free-text job posting or résumé into a list of
// short requirement items.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/lexical"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/tables"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxItems = 40
	maxItemRunes    = 120
	maxInputRunes   = 6000
	minItemRunes    = 3
)

// Chatter is the chat half of an inference engine.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// Extractor asks an LLM for requirement items and falls back to a keyword
// scan when the model fails or returns nothing usable.
type Extractor struct {
	client   Chatter
	model    string
	tables   *tables.Tables
	timeout  time.Duration
	maxItems int
	log      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout bounds the chat call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxItems caps the number of returned items.
func WithMaxItems(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxItems = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.log = logger.OrNop(l) }
}

// NewExtractor creates an Extractor. A nil client means keyword scanning only.
func NewExtractor(client Chatter, model string, t *tables.Tables, opts ...Option) *Extractor {
	e := &Extractor{
		client:   client,
		model:    model,
		tables:   t,
		timeout:  defaultTimeout,
		maxItems: defaultMaxItems,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the requirement items found in text. It never fails:
// chat errors and unusable responses fall back to keyword scanning, and
// blank text yields no items.
func (e *Extractor) Extract(ctx context.Context, text, domainHint string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if e.client != nil {
		items, err := e.fromModel(ctx, text, domainHint)
		if err != nil {
			e.log.Warn("requirement extraction failed, scanning keywords",
				zap.String(logger.FieldModel, e.model), zap.Error(err))
		} else if len(items) > 0 {
			return items
		} else {
			e.log.Info("model returned no requirement items, scanning keywords",
				zap.String(logger.FieldModel, e.model))
		}
	}
	return e.Keywords(text, domainHint)
}

func (e *Extractor) fromModel(ctx context.Context, text, domainHint string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := BuildPrompt(truncateRunes(text, maxInputRunes), e.tables.DomainContext(domainHint))
	raw, err := e.client.Chat(ctx, e.model, messages, itemsSchema())
	if err != nil {
		return nil, err
	}
	e.log.Debug("extraction response", zap.String("response", logger.TruncateForLog(raw, 500)))
	return e.clean(ParseItems(raw)), nil
}

// Keywords scans text for the generic keywords and those of the hinted
// domain, in table order.
func (e *Extractor) Keywords(text, domainHint string) []string {
	normalized := e.tables.Normalizer().Normalize(text)
	if normalized == "" {
		return nil
	}
	candidates := append([]string(nil), e.tables.GenericKeywords...)
	if d, ok := e.tables.Domain(domainHint); ok {
		candidates = append(candidates, d.Keywords...)
	}

	var found []string
	for _, kw := range candidates {
		if lexical.ContainsPhrase(normalized, e.tables.Normalizer().Normalize(kw)) {
			found = append(found, kw)
		}
	}
	return e.clean(found)
}

// ParseItems accepts the structured {"items": [...]} response, a bare JSON
// array, or one item per line.
func ParseItems(raw string) []string {
	raw = strings.TrimSpace(stripCodeFence(raw))

	var obj struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Items != nil {
		return obj.Items
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		item := stripBullet(line)
		if item != "" && !strings.HasSuffix(item, ":") {
			out = append(out, item)
		}
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func stripBullet(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•· \t")
	// Numbered lists: "1. item" or "2) item".
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && isDigits(line[:i]) && strings.HasPrefix(line[i+1:], " ") {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// clean trims items, drops very short or oversized ones, removes
// case-insensitive duplicates and applies the item cap.
func (e *Extractor) clean(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.Trim(strings.TrimSpace(it), `"'`+"`")
		it = strings.Join(strings.Fields(it), " ")
		n := len([]rune(it))
		if n < minItemRunes || n > maxItemRunes {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == e.maxItems {
			break
		}
	}
	return out
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func itemsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"items": {
				Type:        "array",
				Description: "Short skill, qualification or expectation phrases, one per entry",
				Items:       &engine.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"items"},
	}
}
