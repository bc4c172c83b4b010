// Package tables loads the declarative data assets that drive scoring,
// categorization and fallback behavior. Defaults are embedded in the
// binary; any file can be overridden from a directory at startup. A loaded
// Tables value is read-only and safe for concurrent use.
package tables

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/skillgap/internal/lexical"
)

//go:embed data/*.yaml
var embedded embed.FS

// Category names. The set is closed: tables that name anything else fail
// validation.
const (
	CategoryLanguage      = "language-proficiency"
	CategoryInterpersonal = "interpersonal-skills"
	CategoryExperience    = "experience-level"
	CategoryEducation     = "education-certification"
	CategoryDomain        = "domain-expertise"
	CategoryTechnical     = "technical-skills"
	CategoryOther         = "other"
)

// CategoryNames lists every valid category.
var CategoryNames = []string{
	CategoryLanguage,
	CategoryInterpersonal,
	CategoryExperience,
	CategoryEducation,
	CategoryDomain,
	CategoryTechnical,
	CategoryOther,
}

// IsCategory reports whether name belongs to the closed category set.
func IsCategory(name string) bool {
	for _, c := range CategoryNames {
		if c == name {
			return true
		}
	}
	return false
}

const (
	fileCategories    = "categories.yaml"
	fileThresholds    = "thresholds.yaml"
	fileAliases       = "aliases.yaml"
	fileClusters      = "clusters.yaml"
	fileAbbreviations = "abbreviations.yaml"
	fileSuggestions   = "suggestions.yaml"
	fileDomains       = "domains.yaml"
)

// Category is one entry of the category profile table.
type Category struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Color       string   `yaml:"color" json:"color"`
	Weight      float64  `yaml:"weight" json:"weight"`
	Priority    int      `yaml:"priority" json:"priority"`
	Keywords    []string `yaml:"keywords" json:"-"`
}

// Threshold is the pair of verdict cutoffs for a category.
type Threshold struct {
	Match   float64 `yaml:"match" json:"match"`
	Unclear float64 `yaml:"unclear" json:"unclear"`
}

// AliasGroup maps a canonical term to its accepted aliases.
type AliasGroup struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// Cluster groups related technologies.
type Cluster struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// SuggestionKind is a coarse requirement type with canned suggestions.
type SuggestionKind struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	Suggestions []string `yaml:"suggestions"`
}

// Domain describes a job domain hint.
type Domain struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Context  string   `yaml:"context"`
	Keywords []string `yaml:"keywords"`
}

type categoriesFile struct {
	Version    int        `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

type thresholdsFile struct {
	Version    int                  `yaml:"version"`
	Default    Threshold            `yaml:"default"`
	Categories map[string]Threshold `yaml:"categories"`
}

type aliasesFile struct {
	Version int          `yaml:"version"`
	Groups  []AliasGroup `yaml:"groups"`
}

type clustersFile struct {
	Version  int       `yaml:"version"`
	Clusters []Cluster `yaml:"clusters"`
}

type abbreviationsFile struct {
	Version       int               `yaml:"version"`
	Abbreviations map[string]string `yaml:"abbreviations"`
	Symbols       map[string]string `yaml:"symbols"`
}

type suggestionsFile struct {
	Version int              `yaml:"version"`
	Kinds   []SuggestionKind `yaml:"kinds"`
	Generic []string         `yaml:"generic"`
}

type domainsFile struct {
	Version         int      `yaml:"version"`
	GenericKeywords []string `yaml:"generic_keywords"`
	DefaultContext  string   `yaml:"default_context"`
	Domains         []Domain `yaml:"domains"`
}

// Tables is the full set of loaded data assets.
type Tables struct {
	// Versions maps each data file name to its declared version.
	Versions map[string]int

	Categories         []Category
	DefaultThreshold   Threshold
	Thresholds         map[string]Threshold
	AliasGroups        []AliasGroup
	Clusters           []Cluster
	Abbreviations      map[string]string
	Symbols            map[string]string
	SuggestionKinds    []SuggestionKind
	GenericSuggestions []string
	GenericKeywords    []string
	DefaultContext     string
	Domains            []Domain

	normalizer   *lexical.Normalizer
	groupTerms   [][]string
	clusterTerms [][]string
	kindTerms    [][]string
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Load("")
}

// Load reads every data file from dir when present there, falling back to
// the embedded copy otherwise. An empty dir loads only embedded data.
func Load(dir string) (*Tables, error) {
	read := func(name string) ([]byte, error) {
		if dir != "" {
			b, err := os.ReadFile(filepath.Join(dir, name))
			if err == nil {
				return b, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
		}
		return embedded.ReadFile("data/" + name)
	}

	decode := func(name string, out any) error {
		b, err := read(name)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(b, out); err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}
		return nil
	}

	var (
		cats  categoriesFile
		thr   thresholdsFile
		al    aliasesFile
		cl    clustersFile
		abbr  abbreviationsFile
		sugg  suggestionsFile
		doms  domainsFile
		files = []struct {
			name string
			out  any
		}{
			{fileCategories, &cats},
			{fileThresholds, &thr},
			{fileAliases, &al},
			{fileClusters, &cl},
			{fileAbbreviations, &abbr},
			{fileSuggestions, &sugg},
			{fileDomains, &doms},
		}
	)
	for _, f := range files {
		if err := decode(f.name, f.out); err != nil {
			return nil, err
		}
	}

	t := &Tables{
		Versions: map[string]int{
			fileCategories:    cats.Version,
			fileThresholds:    thr.Version,
			fileAliases:       al.Version,
			fileClusters:      cl.Version,
			fileAbbreviations: abbr.Version,
			fileSuggestions:   sugg.Version,
			fileDomains:       doms.Version,
		},
		Categories:         cats.Categories,
		DefaultThreshold:   thr.Default,
		Thresholds:         thr.Categories,
		AliasGroups:        al.Groups,
		Clusters:           cl.Clusters,
		Abbreviations:      abbr.Abbreviations,
		Symbols:            abbr.Symbols,
		SuggestionKinds:    sugg.Kinds,
		GenericSuggestions: sugg.Generic,
		GenericKeywords:    doms.GenericKeywords,
		DefaultContext:     doms.DefaultContext,
		Domains:            doms.Domains,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.compile()
	return t, nil
}

// Validate checks the structural rules every table set must satisfy.
func (t *Tables) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	priorities := make(map[int]string)
	for _, c := range t.Categories {
		if !IsCategory(c.Name) {
			errs = append(errs, fmt.Errorf("categories: unknown category %q", c.Name))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("categories: duplicate category %q", c.Name))
		}
		seen[c.Name] = true
		if c.Weight <= 0 {
			errs = append(errs, fmt.Errorf("categories: %s: weight must be positive", c.Name))
		}
		if other, ok := priorities[c.Priority]; ok {
			errs = append(errs, fmt.Errorf("categories: %s and %s share priority %d", other, c.Name, c.Priority))
		}
		priorities[c.Priority] = c.Name
	}
	for _, name := range CategoryNames {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("categories: missing category %q", name))
		}
	}

	if err := validThreshold("default", t.DefaultThreshold); err != nil {
		errs = append(errs, err)
	}
	for name, th := range t.Thresholds {
		if !IsCategory(name) {
			errs = append(errs, fmt.Errorf("thresholds: unknown category %q", name))
			continue
		}
		if err := validThreshold(name, th); err != nil {
			errs = append(errs, err)
		}
	}

	for i, g := range t.AliasGroups {
		if strings.TrimSpace(g.Canonical) == "" {
			errs = append(errs, fmt.Errorf("aliases: group %d has no canonical term", i))
		}
	}
	for _, k := range t.SuggestionKinds {
		if len(k.Suggestions) == 0 {
			errs = append(errs, fmt.Errorf("suggestions: kind %q has no suggestions", k.Name))
		}
	}
	if len(t.GenericSuggestions) == 0 {
		errs = append(errs, errors.New("suggestions: generic list is empty"))
	}

	return errors.Join(errs...)
}

func validThreshold(name string, th Threshold) error {
	if th.Unclear < 0 || th.Match > 1 || th.Unclear > th.Match {
		return fmt.Errorf("thresholds: %s: need 0 <= unclear <= match <= 1, got unclear=%.2f match=%.2f", name, th.Unclear, th.Match)
	}
	return nil
}

// compile builds the normalized lookup structures. Must run after Validate.
func (t *Tables) compile() {
	t.normalizer = lexical.NewNormalizer(t.Abbreviations, t.Symbols)
	norm := t.normalizer.Normalize

	sort.SliceStable(t.Categories, func(i, j int) bool {
		return t.Categories[i].Priority < t.Categories[j].Priority
	})
	for i := range t.Categories {
		t.Categories[i].Keywords = normalizeAll(norm, t.Categories[i].Keywords)
	}

	t.groupTerms = make([][]string, len(t.AliasGroups))
	for i, g := range t.AliasGroups {
		t.groupTerms[i] = normalizeAll(norm, append([]string{g.Canonical}, g.Aliases...))
	}

	t.clusterTerms = make([][]string, len(t.Clusters))
	for i, c := range t.Clusters {
		t.clusterTerms[i] = normalizeAll(norm, c.Members)
	}

	t.kindTerms = make([][]string, len(t.SuggestionKinds))
	for i, k := range t.SuggestionKinds {
		t.kindTerms[i] = normalizeAll(norm, k.Keywords)
	}
}

func normalizeAll(norm func(string) string, in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := norm(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
