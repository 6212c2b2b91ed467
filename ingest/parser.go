// ABOUTME: Splits decoded text into rows of named fields
// ABOUTME: Sniffs the delimiter from the header line and honors double-quote quoting
package ingest

import (
	"strings"
)

// Delimiters are the candidate separators in tie-break priority order.
var Delimiters = []rune{';', '\t', ',', '|'}

// Table is a parsed delimited text.
type Table struct {
	Headers   []string
	Rows      []map[string]string
	Delimiter rune
}

// SniffDelimiter picks the candidate that occurs most often in the header
// line. Ties go to the earlier candidate.
func SniffDelimiter(header string) rune {
	best, bestCount := Delimiters[0], -1
	for _, d := range Delimiters {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// SplitFields splits one line on delim, outside double quotes only.
// A doubled quote inside a quoted field is a literal quote.
func SplitFields(line string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// ParseTable splits text into lines, sniffs the delimiter, and zips each
// data line against the header. Blank rows are dropped.
func ParseTable(text string) Table {
	lines := splitLines(text)
	if len(lines) == 0 {
		return Table{Delimiter: Delimiters[0]}
	}

	delim := SniffDelimiter(lines[0])
	rawHeaders := SplitFields(lines[0], delim)
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}

	table := Table{Headers: headers, Delimiter: delim}
	for _, line := range lines[1:] {
		values := SplitFields(line, delim)
		row := make(map[string]string, len(headers))
		blank := true
		for i, h := range headers {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			row[h] = v
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
