package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/document"
	"github.com/kalambet/skillgap/internal/interview"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Practice interview questions for a job posting",
}

var interviewQuestionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Generate interview questions from a posting and a résumé",
	Long: `Generate interview questions from a posting and a résumé.

Examples:
  skillgap interview questions --posting offer.pdf --resume cv.docx
  skillgap interview questions --posting offer.txt --resume cv.txt -n 5 --json > session.json`,
	RunE: runInterviewQuestions,
}

var interviewReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Score answers to a saved interview session",
	Long: `Score answers to a saved interview session.

The session file is the JSON printed by "interview questions --json". The
answers file is a JSON array of strings, one per question.

Examples:
  skillgap interview review --session session.json --answers answers.json --posting offer.txt`,
	RunE: runInterviewReview,
}

func init() {
	f := interviewQuestionsCmd.Flags()
	f.String("posting", "", "job posting file (required)")
	f.String("resume", "", "résumé file (required)")
	f.String("domain", "", "job domain hint, e.g. developer or marketing")
	f.IntP("count", "n", interview.DefaultQuestions, "number of questions")
	f.Bool("json", false, "print the session as JSON")
	f.Bool("offline", false, "skip inference engines (template questions)")
	interviewQuestionsCmd.MarkFlagRequired("posting")
	interviewQuestionsCmd.MarkFlagRequired("resume")

	f = interviewReviewCmd.Flags()
	f.String("session", "", "session JSON file (required)")
	f.String("answers", "", "answers JSON file (required)")
	f.String("posting", "", "job posting file")
	f.String("resume", "", "résumé file")
	f.String("domain", "", "job domain hint")
	f.Bool("json", false, "print the review as JSON")
	f.Bool("offline", false, "skip inference engines (heuristic review)")
	interviewReviewCmd.MarkFlagRequired("session")
	interviewReviewCmd.MarkFlagRequired("answers")

	interviewCmd.AddCommand(interviewQuestionsCmd, interviewReviewCmd)
}

// newCoachApp loads config and wires the app for an interview command.
func newCoachApp(cmd *cobra.Command, offline bool) (*app, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := appOptions{offline: offline}
	if !offline {
		opts.progress = os.Stderr
	}
	a, err := newApp(cmd.Context(), cfg, log, opts)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func runInterviewQuestions(cmd *cobra.Command, args []string) error {
	postingPath, _ := cmd.Flags().GetString("posting")
	resumePath, _ := cmd.Flags().GetString("resume")
	domain, _ := cmd.Flags().GetString("domain")
	count, _ := cmd.Flags().GetInt("count")
	asJSON, _ := cmd.Flags().GetBool("json")
	offline, _ := cmd.Flags().GetBool("offline")

	posting, err := document.ReadFile(postingPath)
	if err != nil {
		return fmt.Errorf("reading posting: %w", err)
	}
	resume, err := document.ReadFile(resumePath)
	if err != nil {
		return fmt.Errorf("reading résumé: %w", err)
	}

	a, log, err := newCoachApp(cmd, offline)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	s, err := a.coach.Generate(cmd.Context(), interview.GenerateRequest{
		Resume:       resume,
		Posting:      posting,
		DomainHint:   domain,
		NumQuestions: count,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeIndented(out, s)
	}
	renderSession(out, s)
	return nil
}

func runInterviewReview(cmd *cobra.Command, args []string) error {
	sessionPath, _ := cmd.Flags().GetString("session")
	answersPath, _ := cmd.Flags().GetString("answers")
	postingPath, _ := cmd.Flags().GetString("posting")
	resumePath, _ := cmd.Flags().GetString("resume")
	domain, _ := cmd.Flags().GetString("domain")
	asJSON, _ := cmd.Flags().GetBool("json")
	offline, _ := cmd.Flags().GetBool("offline")

	var s interview.Session
	if err := readJSONFile(sessionPath, &s); err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	var answers []string
	if err := readJSONFile(answersPath, &answers); err != nil {
		return fmt.Errorf("reading answers: %w", err)
	}
	req := interview.ReviewRequest{Questions: s.Questions, Answers: answers, DomainHint: domain}
	var err error
	if postingPath != "" {
		if req.Posting, err = document.ReadFile(postingPath); err != nil {
			return fmt.Errorf("reading posting: %w", err)
		}
	}
	if resumePath != "" {
		if req.Resume, err = document.ReadFile(resumePath); err != nil {
			return fmt.Errorf("reading résumé: %w", err)
		}
	}

	a, log, err := newCoachApp(cmd, offline)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	rev, err := a.coach.Review(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeIndented(out, rev)
	}
	renderReview(out, rev)
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSession(w io.Writer, s *interview.Session) {
	for _, q := range s.Questions {
		fmt.Fprintf(w, "%2d. %s  [%s]\n", q.ID, q.Text, q.Category)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d questions, about %d minutes\n", s.NumQuestions, s.EstimatedTime)
}

func renderReview(w io.Writer, rev *interview.Review) {
	for _, f := range rev.Feedback {
		fmt.Fprintf(w, "%2d. %2d/10  %s\n", f.QuestionID, f.Score, f.Question)
		if f.Comment != "" {
			fmt.Fprintf(w, "          %s\n", f.Comment)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, fmt.Sprintf("Overall %d/100", rev.OverallScore)))
	for _, s := range rev.Strengths {
		fmt.Fprintf(w, "  + %s\n", s)
	}
	for _, s := range rev.Improvements {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	if rev.Summary != "" {
		fmt.Fprintf(w, "  %s\n", rev.Summary)
	}
}
