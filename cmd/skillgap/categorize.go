package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kalambet/skillgap/internal/categorize"
	"github.com/kalambet/skillgap/internal/tables"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize <requirement>...",
	Short: "Show the category assigned to each requirement",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tbl, err := tables.Load(cfg.Scoring.TablesDir)
		if err != nil {
			return fmt.Errorf("loading tables: %w", err)
		}
		c := categorize.New(tbl)

		verbose, _ := cmd.Flags().GetBool("scores")
		out := cmd.OutOrStdout()
		for _, text := range args {
			name := c.Categorize(text)
			th := tbl.Threshold(name)
			fmt.Fprintf(out, "%-26s match≥%.2f unclear≥%.2f  %s\n", colorize(colorBold, name), th.Match, th.Unclear, text)
			if verbose {
				scores := c.Scores(text)
				names := make([]string, 0, len(scores))
				for cat := range scores {
					names = append(names, cat)
				}
				sort.Slice(names, func(i, j int) bool { return scores[names[i]] > scores[names[j]] })
				for _, cat := range names {
					fmt.Fprintf(out, "    %-24s %.1f\n", cat, scores[cat])
				}
			}
		}
		return nil
	},
}

func init() {
	categorizeCmd.Flags().Bool("scores", false, "print the keyword score of every candidate category")
}
