// ABOUTME: Standalone HTML table export
// ABOUTME: Cells are escaped by html/template
package export

import (
	"fmt"
	"html/template"
	"io"
)

var htmlTemplate = template.Must(template.New("table").Funcs(template.FuncMap{"text": Text}).Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
table { border-collapse: collapse; font-family: sans-serif; font-size: 13px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #4472c4; color: #fff; }
tr:nth-child(even) td { background: #f3f6fb; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="count">{{len .Rows}}</p>
<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{text .}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

// WriteHTML writes the table as a standalone HTML page.
func WriteHTML(w io.Writer, t Table) error {
	if err := htmlTemplate.Execute(w, t); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}
