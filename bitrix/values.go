// ABOUTME: Helpers for loosely typed JSON values returned by the REST API
// ABOUTME: Ids may arrive as strings, numbers, or null
package bitrix

import (
	"strconv"
	"strings"
)

// str renders a JSON-decoded scalar as text.
func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "Y"
		}
		return "N"
	default:
		return ""
	}
}

// list flattens a scalar or array value into its non-empty text items.
func list(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := strings.TrimSpace(str(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := strings.TrimSpace(str(x)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// isEmptyID treats "", "0" and whitespace as no reference.
func isEmptyID(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == "0"
}
