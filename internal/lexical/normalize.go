// Package lexical holds the dependency-free text primitives shared by the
// scorer and the categorizer: normalization, tokenization, word-set overlap
// and a pairwise TF-IDF cosine.
package lexical

import (
	"strings"
	"unicode"
)

// Normalizer folds free text into a canonical form so that near-identical
// terms collide. The zero value performs case folding, punctuation stripping
// and whitespace collapsing without any table lookups.
type Normalizer struct {
	abbreviations map[string]string
	symbols       map[string]string
}

// NewNormalizer returns a Normalizer that expands abbreviations token by
// token and rewrites symbol-bearing terms (such as "c++") before punctuation
// is stripped. Keys are matched in lower case.
func NewNormalizer(abbreviations, symbols map[string]string) *Normalizer {
	n := &Normalizer{
		abbreviations: make(map[string]string, len(abbreviations)),
		symbols:       make(map[string]string, len(symbols)),
	}
	for k, v := range abbreviations {
		n.abbreviations[strings.ToLower(k)] = strings.ToLower(v)
	}
	for k, v := range symbols {
		n.symbols[strings.ToLower(k)] = strings.ToLower(v)
	}
	return n
}

// Normalize case-folds s, strips punctuation other than hyphen and period,
// collapses whitespace and expands known abbreviations.
func (n *Normalizer) Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if n != nil && len(n.symbols) > 0 {
		fields := strings.Fields(s)
		for i, f := range fields {
			core := strings.Trim(f, ",;:!?()[]{}\"'")
			if to, ok := n.symbols[core]; ok {
				fields[i] = to
			}
		}
		s = strings.Join(fields, " ")
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' {
			return r
		}
		return ' '
	}, s)

	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f == "" {
			continue
		}
		if n != nil {
			if exp, ok := n.abbreviations[f]; ok {
				f = exp
			}
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Tokens splits an already normalized string into words.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// TokenSet returns the distinct words of an already normalized string.
func TokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments are expected to be normalized.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" || text == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
