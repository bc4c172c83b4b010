// Package report renders a comparison as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kalambet/skillgap/internal/gap"
)

// Sheet names.
const (
	SheetSummary      = "Summary"
	SheetRequirements = "Requirements"
	SheetCategories   = "Categories"
)

var verdictFill = map[gap.Verdict]string{
	gap.VerdictMatch:   "C6EFCE",
	gap.VerdictUnclear: "FFEB9C",
	gap.VerdictMissing: "FFC7CE",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// WriteXLSX saves the workbook to path, adding the .xlsx extension when
// missing.
func WriteXLSX(path string, items []gap.MatchResult, summary gap.Summary) error {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	f, err := build(items, summary)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(filepath.Clean(path)); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, items []gap.MatchResult, summary gap.Summary) error {
	f, err := build(items, summary)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

type styles struct {
	header, label, percent int
	verdict                map[gap.Verdict]int
}

func build(items []gap.MatchResult, summary gap.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetRequirements, SheetCategories} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating styles: %w", err)
	}

	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{SheetSummary, func() error { return writeSummary(f, st, summary) }},
		{SheetRequirements, func() error { return writeRequirements(f, st, items) }},
		{SheetCategories, func() error { return writeCategories(f, st, summary) }},
	} {
		if err := step.fn(); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing %s sheet: %w", step.name, err)
		}
	}
	return f, nil
}

func newStyles(f *excelize.File) (*styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}
	if st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, err
	}
	// Built-in number format 10 is "0.00%".
	if st.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10}); err != nil {
		return nil, err
	}
	st.verdict = make(map[gap.Verdict]int, len(verdictFill))
	for v, color := range verdictFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thinBorder,
		})
		if err != nil {
			return nil, err
		}
		st.verdict[v] = id
	}
	return &st, nil
}

func writeSummary(f *excelize.File, st *styles, s gap.Summary) error {
	_ = f.SetColWidth(SheetSummary, "A", "A", 22)
	_ = f.SetColWidth(SheetSummary, "B", "B", 14)

	rows := [][2]any{
		{"Requirements", s.TotalItems},
		{"Matches", s.Matches},
		{"Unclear", s.Unclear},
		{"Missing", s.Missing},
		{"Match rate", s.MatchPercentage},
	}
	for i, r := range rows {
		row := i + 1
		if err := f.SetCellValue(SheetSummary, cell(1, row), r[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetSummary, cell(2, row), r[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetSummary, cell(1, row), cell(1, row), st.label); err != nil {
			return err
		}
	}
	last := cell(2, len(rows))
	return f.SetCellStyle(SheetSummary, last, last, st.percent)
}

func writeRequirements(f *excelize.File, st *styles, items []gap.MatchResult) error {
	widths := []float64{40, 24, 10, 12, 40, 70}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetRequirements, col, col, w)
	}
	if err := writeHeader(f, st, SheetRequirements, "Requirement", "Category", "Status", "Confidence", "Résumé match", "Suggestions"); err != nil {
		return err
	}

	for i, it := range items {
		row := i + 2
		values := []any{it.Requirement, it.Category, string(it.Verdict), it.Confidence, it.Matched, strings.Join(it.Suggestions, "\n")}
		for col, v := range values {
			if err := f.SetCellValue(SheetRequirements, cell(col+1, row), v); err != nil {
				return err
			}
		}
		if id, ok := st.verdict[it.Verdict]; ok {
			if err := f.SetCellStyle(SheetRequirements, cell(3, row), cell(3, row), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCategories(f *excelize.File, st *styles, s gap.Summary) error {
	_ = f.SetColWidth(SheetCategories, "A", "A", 26)
	_ = f.SetColWidth(SheetCategories, "B", "B", 44)
	if err := writeHeader(f, st, SheetCategories, "Category", "Description", "Total", "Matches", "Unclear", "Missing", "Match rate", "Avg confidence"); err != nil {
		return err
	}

	for i, name := range s.CategoryOrder() {
		c := s.Categories[name]
		row := i + 2
		values := []any{name, c.Description, c.Total, c.Matches, c.Unclear, c.Missing, c.MatchPercentage, c.AvgConfidence}
		for col, v := range values {
			if err := f.SetCellValue(SheetCategories, cell(col+1, row), v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(SheetCategories, cell(7, row), cell(7, row), st.percent); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, st *styles, sheet string, titles ...string) error {
	for i, title := range titles {
		if err := f.SetCellValue(sheet, cell(i+1, 1), title); err != nil {
			return err
		}
	}
	return f.SetCellStyle(sheet, cell(1, 1), cell(len(titles), 1), st.header)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
