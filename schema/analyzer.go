// ABOUTME: Finds fields in a record batch that the persistent schema does not have yet
// ABOUTME: Infers a column type from sampled values and ranks fields by fill rate
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harperreed/crmpulse/models"
)

// ErrUnknownTable is returned for a table without a base field list.
var ErrUnknownTable = errors.New("unknown table")

// Column types.
const (
	TypeInteger   = "integer"
	TypeNumeric   = "numeric"
	TypeDecimal   = "decimal(15,2)"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeBoolean   = "boolean"
	TypeShortText = "varchar(255)"
	TypeLongText  = "text"
)

// Suggestion priorities by fill rate.
const (
	PriorityImportant = "important"
	PriorityPossible  = "possibly useful"

	ImportantFillRate = 0.3
	PossibleFillRate  = 0.1
)

// SampleSize caps how many non-empty values are inspected per field.
const SampleSize = 100

const shortTextLimit = 255

// storageColumns exist on every remote table next to the canonical fields.
var storageColumns = []string{"id", "external_id", "payload", "raw_data", "imported_at", "updated_at"}

// payloadFields hold the raw source record and are never suggested.
var payloadFields = map[string]bool{"payload": true, "raw_data": true, "rawData": true}

// BaseFields returns the known field list for a table.
func BaseFields(table string) ([]string, error) {
	var canonical []string
	switch table {
	case models.KindDeals:
		canonical = models.DealFields
	case models.KindTasks:
		canonical = models.TaskFields
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	out := make([]string, 0, len(canonical)+len(storageColumns))
	out = append(out, canonical...)
	out = append(out, storageColumns...)
	return out, nil
}

// FieldReport describes one field missing from the base schema.
type FieldReport struct {
	Name       string   `json:"name"`
	Column     string   `json:"column"`
	Type       string   `json:"type"`
	Filled     int      `json:"filled"`
	FillRate   float64  `json:"fillRate"`
	Priority   string   `json:"priority,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Samples    []string `json:"samples,omitempty"`
}

// Report is the drift analysis of one batch against one table.
type Report struct {
	Table  string        `json:"table"`
	Total  int           `json:"total"`
	Fields []FieldReport `json:"fields"`
}

// Analyze compares flattened records against the table's base fields.
func Analyze(table string, records []map[string]any) (Report, error) {
	base, err := BaseFields(table)
	if err != nil {
		return Report{}, err
	}
	known := make(map[string]bool, len(base))
	for _, f := range base {
		known[f] = true
	}

	values := make(map[string][]string)
	var order []string
	for _, rec := range records {
		for name, v := range rec {
			if known[name] || payloadFields[name] || strings.HasPrefix(name, "_") {
				continue
			}
			if _, seen := values[name]; !seen {
				order = append(order, name)
				values[name] = nil
			}
			if s := stringify(v); s != "" {
				values[name] = append(values[name], s)
			}
		}
	}

	report := Report{Table: table, Total: len(records)}
	for _, name := range order {
		filled := values[name]
		field := FieldReport{
			Name:   name,
			Column: ColumnName(name),
			Type:   InferType(filled),
			Filled: len(filled),
		}
		if len(records) > 0 {
			field.FillRate = float64(len(filled)) / float64(len(records))
		}
		field.Priority = priorityFor(field.FillRate)
		if field.Priority != "" {
			field.Suggestion = fmt.Sprintf("%s: filled in %.0f%% of records, add column %s %s",
				field.Priority, field.FillRate*100, field.Column, field.Type)
		}
		field.Samples = distinctSamples(filled, 3)
		report.Fields = append(report.Fields, field)
	}

	sort.SliceStable(report.Fields, func(i, j int) bool {
		if report.Fields[i].FillRate != report.Fields[j].FillRate {
			return report.Fields[i].FillRate > report.Fields[j].FillRate
		}
		return report.Fields[i].Name < report.Fields[j].Name
	})
	return report, nil
}

// AnalyzeDeals runs Analyze over canonical deals.
func AnalyzeDeals(deals []models.Deal) Report {
	recs := make([]map[string]any, len(deals))
	for i, d := range deals {
		recs[i] = d.Fields()
	}
	report, _ := Analyze(models.KindDeals, recs)
	return report
}

// AnalyzeTasks runs Analyze over canonical tasks.
func AnalyzeTasks(tasks []models.Task) Report {
	recs := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		recs[i] = t.Fields()
	}
	report, _ := Analyze(models.KindTasks, recs)
	return report
}

// Suggested returns fields with a priority, in report order.
func (r Report) Suggested() []FieldReport {
	var out []FieldReport
	for _, f := range r.Fields {
		if f.Priority != "" {
			out = append(out, f)
		}
	}
	return out
}

func priorityFor(rate float64) string {
	switch {
	case rate > ImportantFillRate:
		return PriorityImportant
	case rate > PossibleFillRate:
		return PriorityPossible
	default:
		return ""
	}
}

var (
	integerPattern   = regexp.MustCompile(`^-?\d+$`)
	decimalPattern   = regexp.MustCompile(`^-?\d+[.,]\d+$`)
	datePattern      = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}\.\d{1,2}\.\d{4})$`)
	timestampPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}\.\d{1,2}\.\d{4})[T ]\d{1,2}:\d{2}(:\d{2})?(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)
)

var booleanWords = map[string]bool{
	"true": true, "false": true, "y": true, "n": true, "yes": true, "no": true, "да": true, "нет": true,
}

// InferType picks a column type from sampled non-empty values. Checks run
// in order: numeric, date, timestamp, boolean, then text by length.
func InferType(values []string) string {
	if len(values) > SampleSize {
		values = values[:SampleSize]
	}
	if len(values) == 0 {
		return TypeLongText
	}

	if allMatch(values, integerPattern.MatchString) {
		for _, v := range values {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
				return TypeNumeric
			}
		}
		return TypeInteger
	}
	if allMatch(values, func(s string) bool { return integerPattern.MatchString(s) || decimalPattern.MatchString(s) }) {
		return TypeDecimal
	}
	if allMatch(values, datePattern.MatchString) {
		return TypeDate
	}
	if allMatch(values, func(s string) bool { return datePattern.MatchString(s) || timestampPattern.MatchString(s) }) {
		return TypeTimestamp
	}
	if allMatch(values, func(s string) bool { return booleanWords[strings.ToLower(s)] }) {
		return TypeBoolean
	}

	for _, v := range values {
		if utf8.RuneCountInString(v) > shortTextLimit {
			return TypeLongText
		}
	}
	return TypeShortText
}

func allMatch(values []string, match func(string) bool) bool {
	for _, v := range values {
		if !match(v) {
			return false
		}
	}
	return true
}

// ColumnName turns a source field name into a lowercase SQL column name.
func ColumnName(field string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(field) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		return "field"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		name = "f_" + name
	}
	return name
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case *string:
		if x == nil {
			return ""
		}
		return strings.TrimSpace(*x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		if len(x) == 0 {
			return ""
		}
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if len(x) == 0 {
			return ""
		}
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func distinctSamples(values []string, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}
