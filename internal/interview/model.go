package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/extract"
	"github.com/kalambet/skillgap/internal/logger"
)

const questionsPrompt = `You are a hiring manager preparing a job interview. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Write exactly %d interview questions for the candidate.
- Base the questions on the requirements of the job posting and on the candidate's résumé.
- Mix technical, behavioral and motivation questions.
- Ask about the requirements the résumé does not clearly cover.
- Each question is one or two sentences.`

const reviewPrompt = `You are an interview coach reviewing a candidate's answers. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Give one score from 0 to 10 and one short comment per answer, in question order.
- A blank answer scores 0.
- List at most 3 strengths and at most 3 improvements across all answers.
- Summarize the performance in one or two sentences.`

var errMalformedReview = errors.New("malformed review response")

func (c *Coach) questionsFromModel(ctx context.Context, req GenerateRequest, n int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	system := fmt.Sprintf(questionsPrompt, n)
	if ctxText := c.tables.DomainContext(req.DomainHint); ctxText != "" {
		system += fmt.Sprintf("\n\n[Job Context]\n%s", ctxText)
	}
	messages := []engine.Message{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: fmt.Sprintf("[Job posting]\n%s\n\n[Résumé]\n%s",
			truncateRunes(req.Posting, maxInputRunes), truncateRunes(req.Resume, maxInputRunes))},
	}
	raw, err := c.client.Chat(ctx, c.model, messages, questionsSchema())
	if err != nil {
		return nil, err
	}
	c.log.Debug("question response", zap.String("response", logger.TruncateForLog(raw, 500)))

	var obj struct {
		Questions []string `json:"questions"`
	}
	items := extract.ParseItems(raw)
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err == nil && obj.Questions != nil {
		items = obj.Questions
	}
	return cleanQuestions(items, n), nil
}

type modelReview struct {
	Scores       []int    `json:"scores"`
	Comments     []string `json:"comments"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

func (c *Coach) reviewFromModel(ctx context.Context, req ReviewRequest) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "[Job posting]\n%s\n\n[Résumé]\n%s\n\n[Answers]\n",
		truncateRunes(req.Posting, maxInputRunes), truncateRunes(req.Resume, maxInputRunes))
	for i, q := range req.Questions {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, q.Text, i+1, strings.TrimSpace(req.Answers[i]))
	}
	messages := []engine.Message{
		{Role: engine.RoleSystem, Content: reviewPrompt},
		{Role: engine.RoleUser, Content: b.String()},
	}
	raw, err := c.client.Chat(ctx, c.model, messages, reviewSchema())
	if err != nil {
		return nil, err
	}
	c.log.Debug("review response", zap.String("response", logger.TruncateForLog(raw, 500)))

	var mr modelReview
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &mr); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedReview, err)
	}
	if len(mr.Scores) != len(req.Questions) {
		return nil, fmt.Errorf("%w: %d scores for %d questions", errMalformedReview, len(mr.Scores), len(req.Questions))
	}

	rev := &Review{
		Feedback:     make([]Feedback, len(req.Questions)),
		Strengths:    nonEmpty(mr.Strengths),
		Improvements: nonEmpty(mr.Improvements),
		Summary:      strings.TrimSpace(mr.Summary),
	}
	for i, q := range req.Questions {
		score := clampScore(mr.Scores[i])
		if strings.TrimSpace(req.Answers[i]) == "" {
			score = 0
		}
		fb := Feedback{QuestionID: q.ID, Question: q.Text, Score: score}
		if i < len(mr.Comments) {
			fb.Comment = strings.TrimSpace(mr.Comments[i])
		}
		rev.Feedback[i] = fb
	}
	rev.OverallScore = overall(rev.Feedback)
	return rev, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func questionsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"questions": {
				Type:        "array",
				Description: "Interview questions, one per entry",
				Items:       &engine.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"questions"},
	}
}

func reviewSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"scores": {
				Type:        "array",
				Description: "Score from 0 to 10 for each answer, in question order",
				Items:       &engine.SchemaProperty{Type: "integer"},
			},
			"comments": {
				Type:        "array",
				Description: "One short comment per answer, in question order",
				Items:       &engine.SchemaProperty{Type: "string"},
			},
			"strengths":    {Type: "array", Items: &engine.SchemaProperty{Type: "string"}},
			"improvements": {Type: "array", Items: &engine.SchemaProperty{Type: "string"}},
			"summary":      {Type: "string"},
		},
		Required: []string{"scores", "comments", "strengths", "improvements", "summary"},
	}
}
