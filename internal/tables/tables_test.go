package tables

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadDefault(t *testing.T) *Tables {
	t.Helper()
	tb, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	return tb
}

func TestDefaultLoads(t *testing.T) {
	tb := loadDefault(t)

	if len(tb.Categories) != len(CategoryNames) {
		t.Fatalf("got %d categories, want %d", len(tb.Categories), len(CategoryNames))
	}
	for i := 1; i < len(tb.Categories); i++ {
		if tb.Categories[i].Priority <= tb.Categories[i-1].Priority {
			t.Errorf("categories not sorted by priority at %d", i)
		}
	}
	for name, v := range tb.Versions {
		if v <= 0 {
			t.Errorf("%s: version = %d, want > 0", name, v)
		}
	}
}

func TestThresholdFallback(t *testing.T) {
	tb := loadDefault(t)

	lang := tb.Threshold(CategoryLanguage)
	if lang.Match != 0.7 || lang.Unclear != 0.4 {
		t.Errorf("language threshold = %+v, want {0.7 0.4}", lang)
	}
	if got := tb.Threshold("not-a-category"); got != tb.DefaultThreshold {
		t.Errorf("unknown category threshold = %+v, want default %+v", got, tb.DefaultThreshold)
	}
}

func TestSharedAliasGroup(t *testing.T) {
	tb := loadDefault(t)
	norm := tb.Normalizer().Normalize

	tests := []struct {
		a, b string
		want bool
	}{
		{"Amazon Web Services", "AWS", true},
		{"AWS Lambda", "Amazon Web Services", true},
		{"Experience with Kubernetes clusters", "k8s administration", true},
		{"Version control", "git", true},
		{"Javascript", "Java", false},
		{"Team leadership", "Project management", false},
	}
	for _, tt := range tests {
		if got := tb.SharedAliasGroup(norm(tt.a), norm(tt.b)); got != tt.want {
			t.Errorf("SharedAliasGroup(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSharedGroups(t *testing.T) {
	tb := loadDefault(t)
	norm := tb.Normalizer().Normalize

	if !tb.SharedCluster(norm("React developer"), norm("Vue.js")) {
		t.Error("react and vue should share a cluster")
	}
	if tb.SharedCluster(norm("React"), norm("PostgreSQL")) {
		t.Error("react and postgresql should not share a cluster")
	}
	if !tb.SharedAliasGroup(norm("strong leadership"), norm("team lead for 3 years")) {
		t.Error("leadership and team lead should share an alias group")
	}
	if tb.SharedAliasGroup(norm("team leadership"), norm("project management")) {
		t.Error("leadership and project management should not share an alias group")
	}
}

func TestSuggestionKindFor(t *testing.T) {
	tb := loadDefault(t)
	norm := tb.Normalizer().Normalize

	tests := map[string]string{
		"Python":            "programming-language",
		"AWS Lambda":        "cloud-tool",
		"PostgreSQL tuning": "database",
		"Git workflows":     "version-control",
		"Scrum":             "methodology",
		"English B2":        "spoken-language",
	}
	for in, want := range tests {
		k, ok := tb.SuggestionKindFor(norm(in))
		if !ok || k.Name != want {
			t.Errorf("SuggestionKindFor(%q) = %q, %v; want %q", in, k.Name, ok, want)
		}
	}
	if _, ok := tb.SuggestionKindFor(norm("Team leadership")); ok {
		t.Error("Team leadership should have no specific kind")
	}
}

func TestDomainLookup(t *testing.T) {
	tb := loadDefault(t)

	d, ok := tb.Domain("Développeur")
	if !ok || d.Name != "developer" {
		t.Errorf("Domain(Développeur) = %q, %v; want developer", d.Name, ok)
	}
	if got := tb.DomainContext(""); got != tb.DefaultContext {
		t.Errorf("DomainContext(\"\") = %q, want default", got)
	}
}

func TestLoadOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	custom := `version: 3
default: {match: 0.65, unclear: 0.35}
categories:
  technical-skills: {match: 0.75, unclear: 0.45}
`
	if err := os.WriteFile(filepath.Join(dir, "thresholds.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	tb, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tb.Versions["thresholds.yaml"] != 3 {
		t.Errorf("thresholds version = %d, want 3", tb.Versions["thresholds.yaml"])
	}
	if got := tb.Threshold(CategoryTechnical); got.Match != 0.75 {
		t.Errorf("technical match = %.2f, want 0.75", got.Match)
	}
	if got := tb.Threshold(CategoryLanguage); got.Match != 0.65 {
		t.Errorf("language falls back to default: got %.2f, want 0.65", got.Match)
	}
	if len(tb.Categories) != len(CategoryNames) {
		t.Errorf("categories not loaded from embedded defaults")
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	bad := `version: 1
default: {match: 0.3, unclear: 0.6}
categories:
  wizardry: {match: 0.5, unclear: 0.2}
`
	if err := os.WriteFile(filepath.Join(dir, "thresholds.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"default", "wizardry"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadRejectsMissingCategory(t *testing.T) {
	dir := t.TempDir()
	bad := `version: 1
categories:
  - {name: technical-skills, weight: 1, priority: 1, keywords: [go]}
`
	if err := os.WriteFile(filepath.Join(dir, "categories.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for incomplete category table")
	}
}
