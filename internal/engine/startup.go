package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that the engine is reachable and that every named model
// is available, pulling missing ones with progress written to w. Empty and
// repeated names are skipped.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("%s inference backend is not reachable; please ensure it is started", e.Name())
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if !e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: pulling...\n", model)
			if err := e.PullModel(ctx, model, progressPrinter(w)); err != nil {
				return fmt.Errorf("pulling model %s: %w", model, err)
			}
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}

// progressPrinter prints a line whenever the pull status or its whole
// percentage changes.
func progressPrinter(w io.Writer) func(PullProgress) {
	lastStatus, lastPct := "", -1
	return func(p PullProgress) {
		pct := -1
		if p.Total > 0 {
			pct = int(float64(p.Completed) / float64(p.Total) * 100)
		}
		if p.Status == lastStatus && pct == lastPct {
			return
		}
		lastStatus, lastPct = p.Status, pct
		if pct >= 0 {
			fmt.Fprintf(w, "  %s %d%%\n", p.Status, pct)
			return
		}
		fmt.Fprintf(w, "  %s\n", p.Status)
	}
}
