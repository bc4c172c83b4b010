// Package categorize assigns a requirement to one of the fixed categories.
//
// Keyword scoring runs first: every keyword found in the normalized text adds
// its length times the category weight, so longer and more specific
// keywords win. When no keyword matches, a short ordered list of patterns is
// tried, then a structural check for very short inputs.
package categorize

import (
	"regexp"
	"strings"

	"github.com/kalambet/skillgap/internal/lexical"
	"github.com/kalambet/skillgap/internal/tables"
)

// shortKeyword is the length at or below which a keyword must match a whole word.
const shortKeyword = 3

type rule struct {
	category string
	patterns []*regexp.Regexp
}

var fallbackRules = []rule{
	{tables.CategoryExperience, []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\+?\s*(years?|yrs?)\b`),
		regexp.MustCompile(`\b(senior|junior|expert|lead|principal|mid-level|entry-level)\b`),
	}},
	{tables.CategoryEducation, []*regexp.Regexp{
		regexp.MustCompile(`\b(degree|bachelor|master|phd|diploma|certified|certification|bsc|msc|mba)\b`),
	}},
	{tables.CategoryInterpersonal, []*regexp.Regexp{
		regexp.MustCompile(`\b(autonomous|rigorous|curious|proactive|motivated|creative|organized|adaptable|reliable|empathetic|dynamic|independent)\b`),
	}},
	{tables.CategoryLanguage, []*regexp.Regexp{
		regexp.MustCompile(`\b[a-c][12]\b`),
		regexp.MustCompile(`\b(native|fluent)\b`),
	}},
	{tables.CategoryTechnical, []*regexp.Regexp{
		regexp.MustCompile(`\w\.js\b`),
		regexp.MustCompile(`\b(cpp|csharp)\b`),
	}},
}

// Categorizer is read-only after construction and safe for concurrent use.
type Categorizer struct {
	tables *tables.Tables
}

// New returns a Categorizer backed by t.
func New(t *tables.Tables) *Categorizer {
	return &Categorizer{tables: t}
}

// Categorize returns the category name for a requirement text.
func (c *Categorizer) Categorize(text string) string {
	normalized := c.tables.Normalizer().Normalize(text)
	if normalized == "" {
		return tables.CategoryOther
	}

	if name, ok := c.byKeywords(normalized); ok {
		return name
	}
	for _, r := range fallbackRules {
		for _, re := range r.patterns {
			if re.MatchString(normalized) {
				return r.category
			}
		}
	}
	if looksLikeLanguageLevel(normalized) {
		return tables.CategoryLanguage
	}
	return tables.CategoryOther
}

// Scores returns the keyword score per category. Categories that matched
// nothing are omitted.
func (c *Categorizer) Scores(text string) map[string]float64 {
	normalized := c.tables.Normalizer().Normalize(text)
	out := make(map[string]float64)
	for _, cat := range c.tables.Categories {
		if s := keywordScore(normalized, cat); s > 0 {
			out[cat.Name] = s
		}
	}
	return out
}

// Profile returns the reporting profile of a category.
func (c *Categorizer) Profile(name string) (tables.Category, bool) {
	return c.tables.Category(name)
}

// byKeywords picks the highest scoring category. Categories are held in
// priority order, so keeping the first maximum breaks ties by priority.
func (c *Categorizer) byKeywords(normalized string) (string, bool) {
	best, bestScore := "", 0.0
	for _, cat := range c.tables.Categories {
		if s := keywordScore(normalized, cat); s > bestScore {
			best, bestScore = cat.Name, s
		}
	}
	return best, bestScore > 0
}

func keywordScore(normalized string, cat tables.Category) float64 {
	var score float64
	for _, kw := range cat.Keywords {
		if keywordMatches(normalized, kw) {
			score += float64(len([]rune(kw))) * cat.Weight
		}
	}
	return score
}

func keywordMatches(text, kw string) bool {
	if len([]rune(kw)) <= shortKeyword {
		return lexical.ContainsPhrase(text, kw)
	}
	return strings.Contains(text, kw)
}

// looksLikeLanguageLevel matches inputs such as "fr b2" or "de ok":
// two or three tokens that are all very short.
func looksLikeLanguageLevel(normalized string) bool {
	tokens := lexical.Tokens(normalized)
	if len(tokens) < 2 || len(tokens) > 3 {
		return false
	}
	for _, tok := range tokens {
		if len([]rune(tok)) > shortKeyword {
			return false
		}
	}
	return true
}
