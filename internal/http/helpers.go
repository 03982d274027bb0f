package http

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFieldRunes caps free-text form and query values.
const maxFieldRunes = 200

// cleanInput trims s, drops control characters other than tab and cuts it
// to maxFieldRunes.
func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes])
	}
	return s
}
