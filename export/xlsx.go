// ABOUTME: XLSX workbook export using excelize
// ABOUTME: One sheet per table; numbers stay numeric cells
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/harperreed/crmpulse/logging"
)

// maxSheetName is the spreadsheet limit on sheet name length.
const maxSheetName = 31

// WriteXLSX writes the table as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logging.Component("export").Warn("failed to close workbook", "err", err)
		}
	}()

	sheet := sheetName(t.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %q: %w", header, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, values := range t.Rows {
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if len(t.Columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(t.Columns))
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return fmt.Errorf("failed to set column widths: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// cellValue keeps numbers numeric and flattens everything else to text.
func cellValue(v any) any {
	switch v.(type) {
	case float64, int, bool:
		return v
	default:
		return Text(v)
	}
}

func sheetName(title string) string {
	if title == "" {
		return "Data"
	}
	runes := []rune(title)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}
