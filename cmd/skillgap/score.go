package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <requirement> <candidate>",
	Short: "Score how well a résumé item satisfies a requirement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		a, err := newApp(cmd.Context(), cfg, log, appOptions{offline: offline})
		if err != nil {
			return err
		}
		defer a.Close()

		m := a.scorer.Explain(cmd.Context(), args[0], args[1])
		out := cmd.OutOrStdout()
		if asJSON {
			return json.NewEncoder(out).Encode(m)
		}
		category := a.categorizer.Categorize(args[0])
		th := a.tables.Threshold(category)
		fmt.Fprintf(out, "%.3f (%s)  category %s, match≥%.2f unclear≥%.2f\n", m.Score, m.Strategy, category, th.Match, th.Unclear)
		return nil
	},
}

func init() {
	scoreCmd.Flags().Bool("offline", false, "lexical signals only")
	scoreCmd.Flags().Bool("json", false, "print the result as JSON")
}
