// ABOUTME: Semicolon-delimited CSV export
// ABOUTME: Prefixed with a UTF-8 BOM so spreadsheet apps detect the encoding
package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVDelimiter matches what spreadsheet apps expect in ru locales.
const CSVDelimiter = ';'

// utf8BOM makes spreadsheet apps detect UTF-8.
const utf8BOM = "\uFEFF"

// WriteCSV writes the table as BOM-prefixed, semicolon-delimited CSV.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = CSVDelimiter

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, v := range r {
			record[i] = Text(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
