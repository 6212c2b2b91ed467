// ABOUTME: Decodes raw file bytes into text, falling back to Windows-1251
// ABOUTME: Never fails; the worst case is best-effort UTF-8 text
package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ReplacementThreshold is the number of U+FFFD runes tolerated in a UTF-8
// decode before the buffer is treated as Windows-1251.
const ReplacementThreshold = 5

const bom = "\uFEFF"

// DecodeText turns a raw buffer into a string.
func DecodeText(data []byte) string {
	text, replaced := decodeUTF8(data)
	if replaced > ReplacementThreshold {
		if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
			text = string(decoded)
		}
	}
	return strings.TrimPrefix(text, bom)
}

// decodeUTF8 substitutes U+FFFD for every invalid byte and counts them.
func decodeUTF8(data []byte) (string, int) {
	if utf8.Valid(data) {
		return string(data), 0
	}

	var b strings.Builder
	b.Grow(len(data))
	replaced := 0
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			replaced++
		}
		b.WriteRune(r)
		data = data[size:]
	}
	return b.String(), replaced
}
