// ABOUTME: Date canonicalization to a single ISO-like textual form
// ABOUTME: Recognizes DD.MM.YYYY with optional time and common machine formats
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical date layouts.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	dateMinLayout  = "2006-01-02 15:04"
)

var dottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})(?:[ T]+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

type dateLayout struct {
	layout  string
	hasTime bool
}

// Generic layouts tried after the dotted form, most specific first.
var genericLayouts = []dateLayout{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{DateTimeLayout, true},
	{"2006-01-02T15:04", true},
	{dateMinLayout, true},
	{DateLayout, false},
	{"2006/01/02 15:04:05", true},
	{"2006/01/02", false},
	{"01/02/2006 15:04:05", true},
	{"01/02/2006", false},
	{time.RFC1123Z, true},
	{time.RFC1123, true},
}

// NormalizeDate canonicalizes a raw date string. Absent values yield nil;
// unparseable values are returned unchanged.
func NormalizeDate(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	if out, ok := normalizeDotted(s); ok {
		return &out
	}

	for _, l := range genericLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		var out string
		if l.hasTime {
			out = t.Format(DateTimeLayout)
		} else {
			out = t.Format(DateLayout)
		}
		return &out
	}

	return &raw
}

func normalizeDotted(s string) (string, bool) {
	m := dottedDate.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}

	out := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if m[4] == "" {
		return out, true
	}

	hour, _ := strconv.Atoi(m[4])
	if hour > 23 {
		return "", false
	}
	out += fmt.Sprintf(" %02d:%s", hour, m[5])
	if m[6] != "" {
		out += ":" + m[6]
	}
	return out, true
}

// ParseCanonical parses a canonical date string back into a time.
func ParseCanonical(s string) (time.Time, bool) {
	for _, layout := range []string{DateTimeLayout, dateMinLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
