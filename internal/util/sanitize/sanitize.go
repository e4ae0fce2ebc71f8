// Package sanitize cleans server-supplied text (file names, captions)
// before it is printed to a terminal.
//
// It removes:
//   - control characters, including the ESC that starts terminal escape
//     sequences
//   - invisible Unicode characters (zero-width spaces, BOM, soft hyphen)
//   - bidirectional overrides that reorder the displayed text
//
// Line endings are normalized to LF and runs of spaces or tabs collapse to
// one space.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaces   = regexp.MustCompile(`[ \t]+`)
	newlines = regexp.MustCompile(`\n+`)
)

// Text sanitizes multi-line text such as a caption.
func Text(s string) string {
	if s == "" {
		return s
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(dropHidden, s)
	s = spaces.ReplaceAllString(s, " ")
	s = newlines.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}

// Line sanitizes text that must stay on one line, such as a file name in a
// table cell. Newlines become spaces.
func Line(s string) string {
	s = Text(s)
	if strings.Contains(s, "\n") {
		s = spaces.ReplaceAllString(strings.ReplaceAll(s, "\n", " "), " ")
	}
	return s
}

// dropHidden maps characters that render invisibly or alter the terminal to
// -1, keeping newlines and tabs.
func dropHidden(r rune) rune {
	switch r {
	case '\n', '\t':
		return r
	case '\u200B', // zero-width space
		'\uFEFF', // zero-width no-break space (BOM)
		'\u00AD', // soft hyphen
		'\u2060', // word joiner
		'\u180E': // Mongolian vowel separator
		return -1
	}
	if r >= '\u202A' && r <= '\u202E' || r >= '\u2066' && r <= '\u2069' {
		return -1
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}
