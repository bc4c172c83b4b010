// Package gap defines the records produced by a comparison: per-requirement
// results, the running tally and the final summary, and the stream events
// that carry them.
package gap

import "sort"

// Verdict is the three-way classification of a requirement.
type Verdict string

const (
	VerdictMatch   Verdict = "match"
	VerdictUnclear Verdict = "unclear"
	VerdictMissing Verdict = "missing"
)

// Classify maps a confidence score to a verdict. Both cutoffs are inclusive.
func Classify(score, matchCutoff, unclearCutoff float64) Verdict {
	switch {
	case score >= matchCutoff:
		return VerdictMatch
	case score >= unclearCutoff:
		return VerdictUnclear
	default:
		return VerdictMissing
	}
}

// MatchResult is the outcome for one posting requirement. It is never
// modified after emission.
type MatchResult struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Requirement string   `json:"offerText"`
	Matched     string   `json:"cvText,omitempty"`
	Verdict     Verdict  `json:"status"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CategoryStats is the per-category breakdown of a summary.
type CategoryStats struct {
	Description     string  `json:"description"`
	Color           string  `json:"color"`
	Total           int     `json:"total"`
	Matches         int     `json:"matches"`
	Missing         int     `json:"missing"`
	Unclear         int     `json:"unclear"`
	MatchPercentage float64 `json:"matchPercentage"`
	AvgConfidence   float64 `json:"avgConfidence"`
}

// Summary aggregates every MatchResult of one comparison.
type Summary struct {
	TotalItems      int                      `json:"totalItems"`
	Matches         int                      `json:"matches"`
	Missing         int                      `json:"missing"`
	Unclear         int                      `json:"unclear"`
	MatchPercentage float64                  `json:"matchPercentage"`
	Categories      map[string]CategoryStats `json:"categories"`
}

// CategoryInfo supplies display metadata for a category.
type CategoryInfo func(category string) (description, color string)

// Tally accumulates results incrementally. The zero value is ready to use.
// It is not safe for concurrent use.
type Tally struct {
	total, matches, missing, unclear int
	categories                       map[string]*categoryTally
}

type categoryTally struct {
	total, matches, missing, unclear int
	confidenceSum                    float64
}

// Add records one result.
func (t *Tally) Add(r MatchResult) {
	if t.categories == nil {
		t.categories = make(map[string]*categoryTally)
	}
	c, ok := t.categories[r.Category]
	if !ok {
		c = &categoryTally{}
		t.categories[r.Category] = c
	}

	t.total++
	c.total++
	c.confidenceSum += r.Confidence

	switch r.Verdict {
	case VerdictMatch:
		t.matches++
		c.matches++
	case VerdictUnclear:
		t.unclear++
		c.unclear++
	default:
		t.missing++
		c.missing++
	}
}

// Total returns the number of results recorded so far.
func (t *Tally) Total() int { return t.total }

// Summary finalizes the counters. Ratios are 0 when nothing was recorded.
func (t *Tally) Summary(info CategoryInfo) Summary {
	s := Summary{
		TotalItems:      t.total,
		Matches:         t.matches,
		Missing:         t.missing,
		Unclear:         t.unclear,
		MatchPercentage: ratio(t.matches, t.total),
		Categories:      make(map[string]CategoryStats, len(t.categories)),
	}
	for name, c := range t.categories {
		stats := CategoryStats{
			Total:           c.total,
			Matches:         c.matches,
			Missing:         c.missing,
			Unclear:         c.unclear,
			MatchPercentage: ratio(c.matches, c.total),
		}
		if c.total > 0 {
			stats.AvgConfidence = c.confidenceSum / float64(c.total)
		}
		if info != nil {
			stats.Description, stats.Color = info(name)
		}
		s.Categories[name] = stats
	}
	return s
}

// CategoryOrder returns the summary's category names sorted by descending
// count, then by name.
func (s Summary) CategoryOrder() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.Categories[names[i]], s.Categories[names[j]]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return names[i] < names[j]
	})
	return names
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
