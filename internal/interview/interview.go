// Package interview prepares practice interview questions from a résumé and
// a job posting, and reviews the candidate's answers to them.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/categorize"
	"github.com/kalambet/skillgap/internal/extract"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/tables"
)

const (
	// DefaultQuestions is the session size when none is requested.
	DefaultQuestions = 10
	// MaxQuestions caps the session size.
	MaxQuestions = 20

	minutesPerQuestion = 2
	defaultTimeout     = 45 * time.Second
	maxInputRunes      = 6000
	minQuestionRunes   = 10
	maxQuestionRunes   = 300
)

var (
	ErrEmptyResume  = errors.New("résumé text is empty")
	ErrEmptyPosting = errors.New("job posting text is empty")
	ErrNoQuestions  = errors.New("no questions to review")
	ErrAnswerCount  = errors.New("answer count does not match question count")
)

// Question is one interview question. Focus names the posting requirement
// the question targets, when there is one.
type Question struct {
	ID       int    `json:"id"`
	Text     string `json:"question"`
	Category string `json:"category"`
	Focus    string `json:"focus,omitempty"`
}

// Session is a generated set of questions. EstimatedTime is in minutes.
type Session struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	NumQuestions  int        `json:"num_questions"`
	EstimatedTime int        `json:"estimated_time"`
	Questions     []Question `json:"questions"`
}

// GenerateRequest asks for NumQuestions questions (DefaultQuestions when
// zero or negative, at most MaxQuestions).
type GenerateRequest struct {
	Resume       string `json:"cv_text"`
	Posting      string `json:"job_text"`
	DomainHint   string `json:"job_category,omitempty"`
	NumQuestions int    `json:"num_questions,omitempty"`
}

// ReviewRequest pairs each question with the answer at the same index.
type ReviewRequest struct {
	Questions  []Question `json:"questions"`
	Answers    []string   `json:"answers"`
	Resume     string     `json:"cv_text"`
	Posting    string     `json:"job_text"`
	DomainHint string     `json:"job_category,omitempty"`
}

// Feedback scores one answer from 0 to 10.
type Feedback struct {
	QuestionID int    `json:"question_id"`
	Question   string `json:"question"`
	Score      int    `json:"score"`
	Comment    string `json:"comment"`
}

// Review is the assessment of a full set of answers. OverallScore is 0-100.
type Review struct {
	OverallScore int        `json:"overall_score"`
	Feedback     []Feedback `json:"feedback"`
	Strengths    []string   `json:"strengths"`
	Improvements []string   `json:"improvements"`
	Summary      string     `json:"summary"`
}

// Extractor lists the requirement items of a posting.
type Extractor interface {
	Extract(ctx context.Context, text, domainHint string) []string
}

// Coach generates questions and reviews answers with an LLM, falling back
// to templates and a heuristic review when the model is absent or fails.
type Coach struct {
	client      extract.Chatter
	model       string
	tables      *tables.Tables
	extractor   Extractor
	categorizer *categorize.Categorizer
	timeout     time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// Option configures a Coach.
type Option func(*Coach)

// WithTimeout bounds each chat call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coach) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithExtractor sets the requirement source for template questions. The
// default scans the posting for known keywords.
func WithExtractor(e Extractor) Option {
	return func(c *Coach) {
		if e != nil {
			c.extractor = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coach) { c.log = logger.OrNop(l) }
}

// WithClock overrides the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coach) { c.now = now }
}

// New creates a Coach. A nil client means template questions and heuristic
// reviews only.
func New(client extract.Chatter, model string, t *tables.Tables, opts ...Option) *Coach {
	c := &Coach{
		client:      client,
		model:       model,
		tables:      t,
		extractor:   extract.NewExtractor(nil, "", t),
		categorizer: categorize.New(t),
		timeout:     defaultTimeout,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate builds a session of questions tailored to the posting and
// résumé.
func (c *Coach) Generate(ctx context.Context, req GenerateRequest) (*Session, error) {
	if strings.TrimSpace(req.Resume) == "" {
		return nil, ErrEmptyResume
	}
	if strings.TrimSpace(req.Posting) == "" {
		return nil, ErrEmptyPosting
	}
	n := req.NumQuestions
	switch {
	case n <= 0:
		n = DefaultQuestions
	case n > MaxQuestions:
		n = MaxQuestions
	}

	var questions []Question
	if c.client != nil {
		texts, err := c.questionsFromModel(ctx, req, n)
		switch {
		case err != nil:
			c.log.Warn("question generation failed, using templates",
				zap.String(logger.FieldModel, c.model), zap.Error(err))
		case len(texts) == 0:
			c.log.Info("model returned no questions, using templates",
				zap.String(logger.FieldModel, c.model))
		default:
			for _, t := range texts {
				questions = append(questions, Question{Text: t, Category: c.categorizer.Categorize(t)})
			}
		}
	}
	if len(questions) == 0 {
		questions = c.templateQuestions(ctx, req.Posting, req.DomainHint, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		questions[i].ID = i + 1
	}
	return &Session{
		ID:            uuid.NewString(),
		CreatedAt:     c.now().UTC(),
		NumQuestions:  len(questions),
		EstimatedTime: len(questions) * minutesPerQuestion,
		Questions:     questions,
	}, nil
}

// Review scores the answers. Blank answers score zero.
func (c *Coach) Review(ctx context.Context, req ReviewRequest) (*Review, error) {
	if len(req.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if len(req.Answers) != len(req.Questions) {
		return nil, fmt.Errorf("%w: %d answers for %d questions", ErrAnswerCount, len(req.Answers), len(req.Questions))
	}

	if c.client != nil {
		rev, err := c.reviewFromModel(ctx, req)
		if err == nil {
			return rev, nil
		}
		c.log.Warn("answer review failed, using heuristic review",
			zap.String(logger.FieldModel, c.model), zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.heuristicReview(ctx, req), nil
}

// cleanQuestions trims, bounds and dedupes model output.
func cleanQuestions(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, limit)
	for _, it := range items {
		it = strings.Join(strings.Fields(strings.Trim(it, `"'`)), " ")
		n := len([]rune(it))
		if n < minQuestionRunes || n > maxQuestionRunes {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == limit {
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

func overall(feedback []Feedback) int {
	if len(feedback) == 0 {
		return 0
	}
	sum := 0
	for _, f := range feedback {
		sum += f.Score
	}
	return (sum*10 + len(feedback)/2) / len(feedback)
}

func clampScore(v int) int {
	return min(max(v, 0), 10)
}
