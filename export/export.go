// ABOUTME: Export format selection and dispatch
// ABOUTME: Dispatches a table to the CSV, HTML, or XLSX writer
package export

import (
	"fmt"
	"io"
)

// Write encodes the table in the given format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatHTML:
		return WriteHTML(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
