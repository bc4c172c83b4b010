package tables

import (
	"strings"

	"github.com/kalambet/skillgap/internal/lexical"
)

// Normalizer returns the text normalizer configured with the abbreviation
// and symbol tables.
func (t *Tables) Normalizer() *lexical.Normalizer {
	return t.normalizer
}

// Category returns the profile for name.
func (t *Tables) Category(name string) (Category, bool) {
	for _, c := range t.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Threshold returns the cutoffs for category, or the default pair when the
// category has no explicit entry.
func (t *Tables) Threshold(category string) Threshold {
	if th, ok := t.Thresholds[category]; ok {
		return th
	}
	return t.DefaultThreshold
}

// SharedAliasGroup reports whether both normalized strings mention a term of
// the same alias group.
func (t *Tables) SharedAliasGroup(a, b string) bool {
	return shareGroup(t.groupTerms, a, b)
}

// SharedCluster reports whether both normalized strings mention a member of
// the same related-technology cluster.
func (t *Tables) SharedCluster(a, b string) bool {
	return shareGroup(t.clusterTerms, a, b)
}

func shareGroup(groups [][]string, a, b string) bool {
	for _, terms := range groups {
		if mentionsAny(a, terms) && mentionsAny(b, terms) {
			return true
		}
	}
	return false
}

func mentionsAny(text string, terms []string) bool {
	for _, term := range terms {
		if lexical.ContainsPhrase(text, term) {
			return true
		}
	}
	return false
}

// SuggestionKindFor returns the first suggestion kind whose keywords appear
// in the normalized requirement.
func (t *Tables) SuggestionKindFor(normalized string) (SuggestionKind, bool) {
	for i, terms := range t.kindTerms {
		if mentionsAny(normalized, terms) {
			return t.SuggestionKinds[i], true
		}
	}
	return SuggestionKind{}, false
}

// Domain looks up a domain hint by name or alias, case-insensitively.
func (t *Tables) Domain(hint string) (Domain, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return Domain{}, false
	}
	for _, d := range t.Domains {
		if strings.ToLower(d.Name) == hint {
			return d, true
		}
		for _, a := range d.Aliases {
			if strings.ToLower(a) == hint {
				return d, true
			}
		}
	}
	return Domain{}, false
}

// DomainContext returns the extraction context for hint, or the default
// context when the hint is empty or unknown.
func (t *Tables) DomainContext(hint string) string {
	if d, ok := t.Domain(hint); ok {
		return d.Context
	}
	return t.DefaultContext
}
