package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/skillgap/internal/document"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/report"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a résumé with a job posting",
	Long: `Compare a résumé with a job posting.

Both documents may be PDF, DOCX, HTML or plain text.

Examples:
  skillgap compare --posting offer.pdf --resume cv.docx
  skillgap compare --posting offer.txt --resume cv.pdf --domain developer --xlsx report.xlsx
  skillgap compare --posting offer.txt --resume cv.txt --offline --json`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().String("posting", "", "job posting file (required)")
	compareCmd.Flags().String("resume", "", "résumé file (required)")
	compareCmd.Flags().String("domain", "", "job domain hint, e.g. developer or marketing")
	compareCmd.Flags().Bool("json", false, "print the full result as JSON")
	compareCmd.Flags().String("xlsx", "", "also write an XLSX report to this path")
	compareCmd.Flags().Bool("offline", false, "skip inference engines (keyword extraction, lexical scoring)")
	compareCmd.MarkFlagRequired("posting")
	compareCmd.MarkFlagRequired("resume")
}

func runCompare(cmd *cobra.Command, args []string) error {
	postingPath, _ := cmd.Flags().GetString("posting")
	resumePath, _ := cmd.Flags().GetString("resume")
	domain, _ := cmd.Flags().GetString("domain")
	asJSON, _ := cmd.Flags().GetBool("json")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	offline, _ := cmd.Flags().GetBool("offline")

	posting, err := document.ReadFile(postingPath)
	if err != nil {
		return fmt.Errorf("reading posting: %w", err)
	}
	resume, err := document.ReadFile(resumePath)
	if err != nil {
		return fmt.Errorf("reading résumé: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	opts := appOptions{offline: offline}
	if !offline {
		opts.progress = os.Stderr
	}
	a, err := newApp(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	req := pipeline.Request{Posting: posting, Resume: resume, DomainHint: domain}
	out := cmd.OutOrStdout()

	var res *pipeline.Result
	if asJSON {
		if res, err = a.analyzer.Collect(ctx, req); err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		res = &pipeline.Result{}
		err := a.analyzer.Analyze(ctx, req, func(e gap.Event) error {
			switch e.Type {
			case gap.EventItem:
				res.Items = append(res.Items, *e.Item)
			case gap.EventSummary:
				res.Summary = *e.Summary
			}
			renderEvent(out, e)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if xlsxPath != "" {
		if err := report.WriteXLSX(xlsxPath, res.Items, res.Summary); err != nil {
			return err
		}
		printSuccess("Report written to %s", xlsxPath)
	}
	return nil
}

// renderEvent prints one stream event. Status and progress go to stderr.
func renderEvent(w io.Writer, e gap.Event) {
	switch e.Type {
	case gap.EventStatus:
		printStep("%s", e.Message)
	case gap.EventItem:
		renderItem(w, *e.Item)
	case gap.EventSummary:
		renderSummary(w, *e.Summary)
	case gap.EventError:
		printError("%s", e.Message)
	}
}

func renderItem(w io.Writer, r gap.MatchResult) {
	fmt.Fprintf(w, "%s %3.0f%%  %s", verdictLabel(r.Verdict), r.Confidence*100, r.Requirement)
	if r.Matched != "" {
		fmt.Fprintf(w, "  ← %s", r.Matched)
	}
	fmt.Fprintf(w, "  [%s]\n", r.Category)
	for _, s := range r.Suggestions {
		fmt.Fprintf(w, "          • %s\n", s)
	}
}

func renderSummary(w io.Writer, s gap.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, "Summary"))
	fmt.Fprintf(w, "  %d requirements: %d match, %d unclear, %d missing (%.0f%% matched)\n",
		s.TotalItems, s.Matches, s.Unclear, s.Missing, s.MatchPercentage*100)
	for _, name := range s.CategoryOrder() {
		c := s.Categories[name]
		fmt.Fprintf(w, "  %-26s %d/%d %s\n", name, c.Matches, c.Total, strings.Repeat("■", c.Matches))
	}
}
