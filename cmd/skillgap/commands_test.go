package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/skillgap/internal/config"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/interview"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/similarity"
	"github.com/kalambet/skillgap/internal/storage"
	"github.com/kalambet/skillgap/internal/tables"
)

var ctx = context.Background()

// testEnv writes a config file pointing storage at a temp dir and returns
// its path together with the data dir.
func testEnv(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "config.yaml")
	content := "storage:\n  data_dir: " + dataDir + "\nscoring:\n  pacing: 0s\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dataDir
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestRenderItem(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	renderItem(&buf, gap.MatchResult{
		Category:    tables.CategoryTechnical,
		Requirement: "Python",
		Matched:     "python",
		Verdict:     gap.VerdictMatch,
		Confidence:  1,
	})
	got := buf.String()
	for _, want := range []string{"match", "100%", "Python", "← python", "[technical-skills]"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderItem output %q missing %q", got, want)
		}
	}

	buf.Reset()
	renderItem(&buf, gap.MatchResult{
		Category:    tables.CategoryInterpersonal,
		Requirement: "Team leadership",
		Verdict:     gap.VerdictMissing,
		Suggestions: []string{"Lead a side project"},
	})
	got = buf.String()
	if strings.Contains(got, "←") {
		t.Errorf("missing item should not show a match: %q", got)
	}
	if !strings.Contains(got, "• Lead a side project") {
		t.Errorf("suggestion not rendered: %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var tally gap.Tally
	tally.Add(gap.MatchResult{Category: tables.CategoryTechnical, Verdict: gap.VerdictMatch, Confidence: 1})
	tally.Add(gap.MatchResult{Category: tables.CategoryTechnical, Verdict: gap.VerdictMissing})
	tally.Add(gap.MatchResult{Category: tables.CategoryLanguage, Verdict: gap.VerdictUnclear, Confidence: 0.5})

	var buf bytes.Buffer
	renderSummary(&buf, tally.Summary(nil))
	got := buf.String()
	if !strings.Contains(got, "3 requirements: 1 match, 1 unclear, 1 missing (33% matched)") {
		t.Errorf("summary line missing: %q", got)
	}
	if strings.Index(got, tables.CategoryTechnical) > strings.Index(got, tables.CategoryLanguage) {
		t.Errorf("categories not ordered by size: %q", got)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Models.Chat = "llama3.2"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestConfigSetCommand(t *testing.T) {
	cfgPath, _ := testEnv(t)

	if _, err := execute(t, "--config", cfgPath, "config", "set", "server.port", "4100"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}

	if _, err := execute(t, "--config", cfgPath, "config", "set", "server.api_key", "x"); err == nil {
		t.Error("expected error setting a secret key")
	}
}

func TestCategorizeCommand(t *testing.T) {
	cfgPath, _ := testEnv(t)

	out, err := execute(t, "--config", cfgPath, "categorize", "English B2", "Master's degree")
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], tables.CategoryLanguage) {
		t.Errorf("line 0 = %q, want %s", lines[0], tables.CategoryLanguage)
	}
	if !strings.Contains(lines[1], tables.CategoryEducation) {
		t.Errorf("line 1 = %q, want %s", lines[1], tables.CategoryEducation)
	}
}

func TestScoreCommandOffline(t *testing.T) {
	cfgPath, _ := testEnv(t)

	out, err := execute(t, "--config", cfgPath, "score", "--offline", "--json", "React", "React Native")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var m similarity.Match
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if m.Strategy != similarity.StrategyContainment || m.Score != 0.9 {
		t.Errorf("match = %+v, want containment 0.9", m)
	}
}

func TestCompareCommandOffline(t *testing.T) {
	cfgPath, _ := testEnv(t)
	posting := writeFile(t, "offer.txt", "We need python, docker and english.")
	resume := writeFile(t, "cv.txt", "Python developer, Docker")
	xlsx := filepath.Join(t.TempDir(), "report.xlsx")

	out, err := execute(t, "--config", cfgPath, "compare",
		"--posting", posting, "--resume", resume, "--domain", "developer",
		"--offline", "--json", "--xlsx", xlsx)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	var res pipeline.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got := strings.Join(res.Requirements, ","); got != "english,python,docker" {
		t.Errorf("requirements = %q", got)
	}
	if res.Summary.TotalItems != 3 || res.Summary.Matches != 2 || res.Summary.Missing != 1 {
		t.Errorf("summary = %+v, want 3 items, 2 matches, 1 missing", res.Summary)
	}
	if _, err := os.Stat(xlsx); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestCompareCommandMissingFile(t *testing.T) {
	cfgPath, _ := testEnv(t)
	resume := writeFile(t, "cv.txt", "Go")

	_, err := execute(t, "--config", cfgPath, "compare",
		"--posting", filepath.Join(t.TempDir(), "absent.txt"), "--resume", resume,
		"--offline", "--json=false", "--xlsx", "")
	if err == nil || !strings.Contains(err.Error(), "reading posting") {
		t.Fatalf("err = %v, want reading posting error", err)
	}
}

func seedCache(t *testing.T, dataDir string, n int) {
	t.Helper()
	store, err := storage.Open(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	for i := 0; i < n; i++ {
		key := "k" + string(rune('a'+i))
		if err := store.PutCachedEmbedding(ctx, key, []byte{0, 0, 128, 63}); err != nil {
			t.Fatal(err)
		}
	}
}

func cacheEntries(t *testing.T, dataDir string) int {
	t.Helper()
	store, err := storage.Open(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	st, err := store.EmbeddingCacheStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return st.Entries
}

func TestCachePurge_Cancelled(t *testing.T) {
	cfgPath, dataDir := testEnv(t)
	seedCache(t, dataDir, 2)

	old := confirmPurge
	defer func() { confirmPurge = old }()
	var asked int
	confirmPurge = func(entries int) (bool, error) {
		asked = entries
		return false, nil
	}

	if _, err := execute(t, "--config", cfgPath, "cache", "purge", "--yes=false"); err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	if asked != 2 {
		t.Errorf("prompt saw %d entries, want 2", asked)
	}
	if n := cacheEntries(t, dataDir); n != 2 {
		t.Errorf("entries after cancel = %d, want 2", n)
	}
}

func TestCachePurge_Yes(t *testing.T) {
	cfgPath, dataDir := testEnv(t)
	seedCache(t, dataDir, 3)

	old := confirmPurge
	defer func() { confirmPurge = old }()
	confirmPurge = func(int) (bool, error) {
		t.Error("prompt shown despite --yes")
		return false, nil
	}

	if _, err := execute(t, "--config", cfgPath, "cache", "purge", "--yes"); err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	if n := cacheEntries(t, dataDir); n != 0 {
		t.Errorf("entries after purge = %d, want 0", n)
	}
}

func TestInterviewCommandsOffline(t *testing.T) {
	cfgPath, _ := testEnv(t)
	posting := writeFile(t, "offer.txt", "We need python, docker and english.")
	resume := writeFile(t, "cv.txt", "Python developer, Docker")

	out, err := execute(t, "--config", cfgPath, "interview", "questions",
		"--posting", posting, "--resume", resume, "--domain", "developer",
		"-n", "4", "--offline", "--json")
	if err != nil {
		t.Fatalf("interview questions: %v", err)
	}
	var s interview.Session
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if s.NumQuestions != 4 || s.EstimatedTime != 8 || s.Questions[0].Focus == "" {
		t.Errorf("session = %+v, want 4 template questions", s)
	}

	sessionPath := writeFile(t, "session.json", out)
	answers := make([]string, len(s.Questions))
	answers[0] = "For example, I built python services and reduced deploy time with Docker."
	b, err := json.Marshal(answers)
	if err != nil {
		t.Fatal(err)
	}
	answersPath := writeFile(t, "answers.json", string(b))

	out, err = execute(t, "--config", cfgPath, "interview", "review",
		"--session", sessionPath, "--answers", answersPath, "--posting", posting,
		"--offline", "--json")
	if err != nil {
		t.Fatalf("interview review: %v", err)
	}
	var rev interview.Review
	if err := json.Unmarshal([]byte(out), &rev); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(rev.Feedback) != 4 || rev.Feedback[0].Score == 0 || rev.Feedback[1].Score != 0 {
		t.Errorf("feedback = %+v", rev.Feedback)
	}
}

func TestInterviewReviewAnswerCount(t *testing.T) {
	cfgPath, _ := testEnv(t)
	sessionPath := writeFile(t, "session.json", `{"questions":[{"id":1,"question":"Why this role?"}]}`)
	answersPath := writeFile(t, "answers.json", `["a","b"]`)

	_, err := execute(t, "--config", cfgPath, "interview", "review",
		"--session", sessionPath, "--answers", answersPath, "--posting", "",
		"--offline", "--json")
	if !errors.Is(err, interview.ErrAnswerCount) {
		t.Fatalf("err = %v, want ErrAnswerCount", err)
	}
}

func TestRenderSession(t *testing.T) {
	var buf bytes.Buffer
	renderSession(&buf, &interview.Session{
		NumQuestions:  1,
		EstimatedTime: 2,
		Questions:     []interview.Question{{ID: 1, Text: "Why this role?", Category: tables.CategoryOther}},
	})
	got := buf.String()
	for _, want := range []string{" 1. Why this role?", "[other]", "1 questions, about 2 minutes"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderSession output %q missing %q", got, want)
		}
	}
}
