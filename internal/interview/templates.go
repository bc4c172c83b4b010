package interview

import (
	"context"
	"fmt"

	"github.com/kalambet/skillgap/internal/lexical"
	"github.com/kalambet/skillgap/internal/tables"
)

// generalSlots is how many closing slots are kept for general questions
// when the posting yields enough requirements.
const generalSlots = 2

var categoryTemplates = map[string]string{
	tables.CategoryTechnical:     "Describe a project where you used %s. What was your role and what was the outcome?",
	tables.CategoryLanguage:      "How do you use %s in a professional setting? Give a recent example.",
	tables.CategoryInterpersonal: "Tell me about a situation that required %s. How did you handle it?",
	tables.CategoryExperience:    "The role asks for %s. Which parts of your background best demonstrate it?",
	tables.CategoryEducation:     "How has your %s prepared you for this position?",
	tables.CategoryDomain:        "What do you know about %s, and how have you applied that knowledge?",
	tables.CategoryOther:         "The posting mentions %s. How does your experience relate to it?",
}

var generalQuestions = []string{
	"Walk me through your background and what brings you to this role.",
	"Why are you interested in this position?",
	"Describe a difficult problem you solved recently and how you approached it.",
	"What would you aim to achieve in your first three months in this role?",
	"Tell me about a mistake you made at work and what you learned from it.",
	"Where would you like your career to be in a few years?",
}

var exampleMarkers = []string{
	"for example", "for instance", "project", "result", "i led", "i built",
	"i managed", "i designed", "we delivered", "increased", "reduced",
}

// templateQuestions asks about each posting requirement in turn and fills
// the rest of the session with general questions.
func (c *Coach) templateQuestions(ctx context.Context, posting, domainHint string, n int) []Question {
	reqs := c.extractor.Extract(ctx, posting, domainHint)
	budget := n
	if n > generalSlots {
		budget = n - generalSlots
	}

	out := make([]Question, 0, n)
	for _, req := range reqs {
		if len(out) == budget {
			break
		}
		cat := c.categorizer.Categorize(req)
		tpl, ok := categoryTemplates[cat]
		if !ok {
			tpl = categoryTemplates[tables.CategoryOther]
		}
		out = append(out, Question{Text: fmt.Sprintf(tpl, req), Category: cat, Focus: req})
	}
	for _, q := range generalQuestions {
		if len(out) == n {
			break
		}
		out = append(out, Question{Text: q, Category: tables.CategoryOther})
	}
	return out
}

type answerCheck struct {
	blank, short, offFocus, example, postingTerm bool
}

// heuristicReview scores each answer on length, whether it addresses the
// question's focus, whether it gives a concrete example and whether it uses
// the posting's vocabulary.
func (c *Coach) heuristicReview(ctx context.Context, req ReviewRequest) *Review {
	norm := c.tables.Normalizer()
	markers := normalizeAll(norm, exampleMarkers)
	postingTerms := normalizeAll(norm, c.extractor.Extract(ctx, req.Posting, req.DomainHint))

	rev := &Review{Feedback: make([]Feedback, len(req.Questions))}
	checks := make([]answerCheck, len(req.Questions))
	for i, q := range req.Questions {
		answer := norm.Normalize(req.Answers[i])
		score, chk := scoreAnswer(answer, norm.Normalize(q.Focus), markers, postingTerms)
		checks[i] = chk
		rev.Feedback[i] = Feedback{QuestionID: q.ID, Question: q.Text, Score: score, Comment: comment(chk, q.Focus)}
	}
	rev.OverallScore = overall(rev.Feedback)
	rev.Strengths, rev.Improvements = themes(rev.OverallScore, checks)
	rev.Summary = fmt.Sprintf("Overall score %d/100 across %d answers.", rev.OverallScore, len(req.Questions))
	return rev
}

func scoreAnswer(answer, focus string, markers, postingTerms []string) (int, answerCheck) {
	var chk answerCheck
	if answer == "" {
		chk.blank = true
		return 0, chk
	}

	words := len(lexical.Tokens(answer))
	score := 3
	switch {
	case words >= 60:
		score += 3
	case words >= 20:
		score += 2
	default:
		chk.short = true
	}
	if focus != "" {
		if lexical.ContainsPhrase(answer, focus) {
			score += 2
		} else {
			chk.offFocus = true
		}
	}
	if mentionsAny(answer, markers) {
		chk.example = true
		score += 2
	}
	if mentionsAny(answer, postingTerms) {
		chk.postingTerm = true
		score++
	}
	return clampScore(score), chk
}

func comment(chk answerCheck, focus string) string {
	switch {
	case chk.blank:
		return "No answer given."
	case chk.short:
		return "The answer is short; describe the situation, your action and the result."
	case chk.offFocus:
		return fmt.Sprintf("Tie the answer back to %s.", focus)
	case !chk.example:
		return "Support the answer with a specific example."
	default:
		return "Clear and specific answer."
	}
}

func themes(score int, checks []answerCheck) (strengths, improvements []string) {
	var blank, short, offFocus, examples, postingTerms int
	for _, c := range checks {
		switch {
		case c.blank:
			blank++
			continue
		case c.short:
			short++
		}
		if c.offFocus {
			offFocus++
		}
		if c.example {
			examples++
		}
		if c.postingTerm {
			postingTerms++
		}
	}

	if score >= 70 {
		strengths = append(strengths, "Answers are detailed and relevant to the role.")
	}
	if examples > 0 {
		strengths = append(strengths, "Uses concrete examples from past work.")
	}
	if postingTerms > 0 {
		strengths = append(strengths, "References skills the posting asks for.")
	}

	if blank > 0 {
		improvements = append(improvements, fmt.Sprintf("Prepare an answer for every question; %d left blank.", blank))
	}
	if short > 0 {
		improvements = append(improvements, "Expand short answers with the situation, your action and the result.")
	}
	if offFocus > 0 {
		improvements = append(improvements, "Link answers explicitly to the skill each question targets.")
	}
	return strengths, improvements
}

func normalizeAll(norm *lexical.Normalizer, in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := norm.Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func mentionsAny(text string, terms []string) bool {
	for _, t := range terms {
		if lexical.ContainsPhrase(text, t) {
			return true
		}
	}
	return false
}
