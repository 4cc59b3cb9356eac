// Package ansi measures and cleans text that may carry terminal escape
// sequences, such as remote file names and snippet commands.
package ansi

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// ShowCursor makes the terminal cursor visible again.
const ShowCursor = "\x1b[?25h"

// Strip removes escape sequences and other control characters from s.
// Tabs become single spaces and newlines are dropped so the result stays on
// one line.
func Strip(s string) string {
	s = xansi.Strip(s)

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20, r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

// Width returns the number of terminal cells s occupies, ignoring escape
// sequences.
func Width(s string) int {
	return xansi.StringWidth(s)
}

// Truncate shortens s to at most width cells, ending truncated text with
// Ellipsis. Escape sequences in s are preserved.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}

	if Width(s) <= width {
		return s
	}

	if width <= len(Ellipsis) {
		return xansi.Truncate(s, width, "")
	}

	return xansi.Truncate(s, width, Ellipsis)
}

// PadRight appends spaces until s reaches width visible cells.
func PadRight(s string, width int) string {
	padding := width - Width(s)
	if padding <= 0 {
		return s
	}

	return s + strings.Repeat(" ", padding)
}
