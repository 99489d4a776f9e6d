package waterfall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Report is an analyzed waterfall ready for rendering.
type Report struct {
	Campaign    core.Campaign           `json:"campaign"`
	Identifiers []core.IdentifierResult `json:"identifiers"`
}

// ColumnHeaders returns the metric headers of an identifier's sheet.
func ColumnHeaders(key string) []string {
	return []string{
		key + " drop if only this drop",
		key + " drop increm",
		key + " drop cumul",
		key + " regain",
		key + " remaining",
		key + " regain if no scrub",
	}
}

// Values returns the metrics of a row in ColumnHeaders order.
func Values(row core.WaterfallRow) []int64 {
	return []int64{row.UniqueDrop, row.IncrementalDrop, row.CumulativeDrop, row.Regain, row.Remaining, row.SoleDrop}
}

const summarySheet = "Summary"

// Excel limits sheet names to 31 characters and forbids a few symbols.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

// sheetName derives a unique sheet name from an identifier key. Lengths are
// counted in runes, as Excel counts characters.
func sheetName(key string, used map[string]bool) string {
	base := truncateRunes(sheetNameReplacer.Replace(key), maxSheetName)
	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// WriteXLSX writes a summary sheet followed by one sheet per identifier.
func (r *Report) WriteXLSX(path string) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := r.writeSummary(f, bold); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, res := range r.Identifiers {
		name := sheetName(res.Key, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := writeIdentifier(f, name, res, bold); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (r *Report) writeSummary(f *excelize.File, bold int) error {
	rows := [][]any{
		{"Offer code", r.Campaign.OfferCode},
		{"Campaign planner", r.Campaign.CampaignPlanner},
		{"Lead", r.Campaign.Lead},
		{"Username", r.Campaign.Username},
		{},
		{"Identifier", "Starting population", "Eligible population", "Status"},
	}
	for _, res := range r.Identifiers {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		rows = append(rows, []any{res.Key, res.StartingPopulation, res.EligiblePopulation, status})
	}
	if err := setRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A4", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A6", "D6", bold); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "D", 22)
}

func writeIdentifier(f *excelize.File, sheet string, res core.IdentifierResult, bold int) error {
	header := []any{"Condition", "Description"}
	for _, h := range ColumnHeaders(res.Key) {
		header = append(header, h)
	}
	rows := [][]any{
		header,
		{"Starting population", "", nil, nil, nil, nil, res.StartingPopulation, nil},
	}
	for _, row := range res.Rows {
		line := []any{row.Condition, row.Description}
		for _, v := range Values(row) {
			line = append(line, v)
		}
		rows = append(rows, line)
	}
	if err := setRows(f, sheet, rows); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
