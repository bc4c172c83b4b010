package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/skillgap/internal/categorize"
	"github.com/kalambet/skillgap/internal/interview"
	"github.com/kalambet/skillgap/internal/similarity"
	"github.com/kalambet/skillgap/internal/tables"
)

func newTestMCPDeps(t *testing.T, a Analyzer) MCPDeps {
	t.Helper()
	tbl, err := tables.Default()
	if err != nil {
		t.Fatalf("tables.Default: %v", err)
	}
	scorer, err := similarity.New(similarity.Config{Tables: tbl})
	if err != nil {
		t.Fatalf("similarity.New: %v", err)
	}
	return MCPDeps{
		Analyzer:    a,
		Scorer:      scorer,
		Categorizer: categorize.New(tbl),
		Coach:       interview.New(nil, "", tbl),
		Tables:      tbl,
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_CompareResume(t *testing.T) {
	a := &fakeAnalyzer{result: sampleResult()}
	handler := mcpCompare(newTestMCPDeps(t, a))

	result, err := handler(context.Background(), makeCallToolRequest("compare_resume", map[string]any{
		"offer_text":   "Python, team leadership",
		"cv_text":      "python",
		"job_category": "developer",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got struct {
		Items   []json.RawMessage `json:"items"`
		Summary struct {
			TotalItems int `json:"totalItems"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got.Items) != 2 || got.Summary.TotalItems != 2 {
		t.Errorf("got %d items, summary total %d", len(got.Items), got.Summary.TotalItems)
	}
	if a.lastReq.DomainHint != "developer" || a.lastReq.Resume != "python" {
		t.Errorf("request = %+v", a.lastReq)
	}
}

func TestMCPTool_CompareResume_MissingArgs(t *testing.T) {
	handler := mcpCompare(newTestMCPDeps(t, &fakeAnalyzer{result: sampleResult()}))

	result, err := handler(context.Background(), makeCallToolRequest("compare_resume", map[string]any{
		"offer_text": "Python",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing cv_text")
	}
}

func TestMCPTool_CompareResume_EmptyPosting(t *testing.T) {
	handler := mcpCompare(newTestMCPDeps(t, offlineAnalyzer(t)))

	result, err := handler(context.Background(), makeCallToolRequest("compare_resume", map[string]any{
		"offer_text": "",
		"cv_text":    "Python developer",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got struct {
		Items   []json.RawMessage `json:"items"`
		Summary struct {
			TotalItems int `json:"totalItems"`
			Matches    int `json:"matches"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got.Items) != 0 || got.Summary.TotalItems != 0 || got.Summary.Matches != 0 {
		t.Errorf("got %d items, summary %+v; want empty", len(got.Items), got.Summary)
	}
}

func TestMCPTool_CompareResume_BadArgType(t *testing.T) {
	handler := mcpCompare(newTestMCPDeps(t, &fakeAnalyzer{result: sampleResult()}))

	result, err := handler(context.Background(), makeCallToolRequest("compare_resume", map[string]any{
		"offer_text": []int{1, 2},
		"cv_text":    "Go",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "invalid arguments") {
		t.Fatalf("result = %+v, want invalid arguments error", result)
	}
}

func TestMCPTool_PrepareInterview(t *testing.T) {
	handler := mcpPrepareInterview(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("prepare_interview", map[string]any{
		"offer_text":    "We need python, docker and english.",
		"cv_text":       "Python developer",
		"job_category":  "developer",
		"num_questions": float64(3),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var got interview.Session
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID == "" || got.NumQuestions != 3 || len(got.Questions) != 3 || got.EstimatedTime != 6 {
		t.Errorf("session = %+v, want 3 questions and 6 minutes", got)
	}
}

func TestMCPTool_PrepareInterview_EmptyResume(t *testing.T) {
	handler := mcpPrepareInterview(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("prepare_interview", map[string]any{
		"offer_text": "Python",
		"cv_text":    " ",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "empty") {
		t.Fatalf("result = %+v, want empty résumé error", result)
	}
}

func TestMCPTool_ReviewInterview(t *testing.T) {
	handler := mcpReviewInterview(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("review_interview", map[string]any{
		"questions": []any{
			map[string]any{"id": float64(1), "question": "How do you use Python?", "category": "technical", "focus": "python"},
			map[string]any{"id": float64(2), "question": "Why this role?", "category": "other"},
		},
		"answers":  []any{"I build python services.", ""},
		"job_text": "We need python.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	var got interview.Review
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Feedback) != 2 {
		t.Fatalf("feedback = %+v, want 2 entries", got.Feedback)
	}
	if got.Feedback[0].QuestionID != 1 || got.Feedback[0].Score == 0 || got.Feedback[1].Score != 0 {
		t.Errorf("feedback = %+v", got.Feedback)
	}
}

func TestMCPTool_ReviewInterview_AnswerCount(t *testing.T) {
	handler := mcpReviewInterview(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("review_interview", map[string]any{
		"questions": []any{map[string]any{"id": float64(1), "question": "Why this role?"}},
		"answers":   []any{},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing answers")
	}
}

func TestMCPTool_Categorize(t *testing.T) {
	handler := mcpCategorize(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("categorize_requirement", map[string]any{
		"text": "English B2",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Category  string           `json:"category"`
		Threshold tables.Threshold `json:"threshold"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Category != tables.CategoryLanguage {
		t.Errorf("category = %q, want %q", got.Category, tables.CategoryLanguage)
	}
	if got.Threshold.Match != 0.7 {
		t.Errorf("threshold = %+v", got.Threshold)
	}
}

func TestMCPTool_ScoreSimilarity(t *testing.T) {
	handler := mcpScore(newTestMCPDeps(t, &fakeAnalyzer{}))

	result, err := handler(context.Background(), makeCallToolRequest("score_similarity", map[string]any{
		"requirement": "React",
		"candidate":   "React Native",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got similarity.Match
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Strategy != similarity.StrategyContainment || got.Score != 0.9 {
		t.Errorf("match = %+v, want containment 0.9", got)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("score_similarity", map[string]any{
		"requirement": "React",
	}))
	if !result.IsError {
		t.Error("expected tool error for missing candidate")
	}
}

func TestMCPResource_Categories(t *testing.T) {
	deps := newTestMCPDeps(t, &fakeAnalyzer{})
	handler := mcpResourceCategories(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "skillgap://categories"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var cats []json.RawMessage
	if err := json.Unmarshal([]byte(tc.Text), &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(deps.Tables.Categories) {
		t.Errorf("got %d categories, want %d", len(cats), len(deps.Tables.Categories))
	}
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps(t, &fakeAnalyzer{}))
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
