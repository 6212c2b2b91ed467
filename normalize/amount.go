// ABOUTME: Money amount parsing for Russian and English number layouts
// ABOUTME: Currency markers and grouping spaces are stripped before parsing
package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount parses money text such as "1 000,50", "1,000.50 RUB" or "₽ 2 500".
// The second result is false when nothing numeric could be read.
func ParseAmount(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if groupedThousands(s, ',') {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case hasDot && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// groupedThousands reports whether sep only groups thousands: "1,000",
// "12,500", "1,000,000". A lone separator before three digits counts as
// grouping unless the integer part is zero or longer than three digits.
func groupedThousands(s string, sep rune) bool {
	parts := strings.Split(strings.TrimPrefix(s, "-"), string(sep))
	if len(parts) < 2 {
		return false
	}
	head := parts[0]
	if len(head) == 0 || len(head) > 3 || strings.Trim(head, "0") == "" {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}
