package reports

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

const (
	unmappedSheet = "Unmapped"
	rejectsSheet  = "Rejects"
)

// writeWorkbook renders the XLSX operators annotate during review. The
// Decision column on the Unmapped sheet is left blank for them to fill.
func writeWorkbook(path string, result *domain.ProcessingResult, c *Collector) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", unmappedSheet); err != nil {
		return err
	}
	header := []any{"Shop", "Original Category", "Count", "First Seen", "Samples", "Best Attempt", "Confidence", "Decision"}
	if err := setRow(f, unmappedSheet, 1, header); err != nil {
		return err
	}
	for i, entry := range result.Unmapped {
		bestPath := ""
		bestConf := 0.0
		if entry.BestAttempt != nil {
			bestPath = strings.Join(entry.BestAttempt.Path, " > ")
			bestConf = entry.BestAttempt.Confidence
		}
		row := []any{
			entry.Shop,
			entry.OriginalCategory,
			entry.Count,
			entry.FirstSeen.UTC().Format(time.RFC3339),
			joinSamples(entry.Samples),
			bestPath,
			bestConf,
			"",
		}
		if err := setRow(f, unmappedSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(unmappedSheet, "B", "B", 36); err != nil {
		return err
	}
	if err := f.SetColWidth(unmappedSheet, "E", "F", 48); err != nil {
		return err
	}

	if _, err := f.NewSheet(rejectsSheet); err != nil {
		return err
	}
	if err := setRow(f, rejectsSheet, 1, []any{"File", "Line", "Product", "Error"}); err != nil {
		return err
	}
	for i, reject := range c.Rejects() {
		row := []any{
			reject.Error.SourceFile,
			reject.Error.Line,
			reject.Error.ProductName,
			reject.Error.Message,
		}
		if err := setRow(f, rejectsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(rejectsSheet, "C", "D", 48); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
