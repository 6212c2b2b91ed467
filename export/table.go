// ABOUTME: Flattens record collections into a column/row table for export
// ABOUTME: Canonical fields come first, then the sorted union of extra fields
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/crmpulse/models"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatHTML, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, html, or xlsx)", s)
	}
}

// Table is a rectangular view of records. Cells keep their decoded type so
// spreadsheet output can store numbers as numbers.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]any
}

// DealTable lays deals out as a table.
func DealTable(deals []models.Deal) Table {
	columns := append(append([]string(nil), models.DealFields...),
		models.ExtraKeys(deals, func(d models.Deal) map[string]any { return d.Extra }, models.DealFields)...)

	t := Table{Title: "Сделки", Columns: columns, Rows: make([][]any, 0, len(deals))}
	for _, d := range deals {
		t.Rows = append(t.Rows, row(columns, d.Fields()))
	}
	return t
}

// TaskTable lays tasks out as a table.
func TaskTable(tasks []models.Task) Table {
	columns := append(append([]string(nil), models.TaskFields...),
		models.ExtraKeys(tasks, func(t models.Task) map[string]any { return t.Extra }, models.TaskFields)...)

	t := Table{Title: "Задачи", Columns: columns, Rows: make([][]any, 0, len(tasks))}
	for _, task := range tasks {
		t.Rows = append(t.Rows, row(columns, task.Fields()))
	}
	return t
}

func row(columns []string, fields map[string]any) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = fields[c]
	}
	return out
}

// Text renders a cell for text formats.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}
