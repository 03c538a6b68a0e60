package tui

import (
	"strings"

	"charm.land/lipgloss/v2"

	"sieve/style"
)

// RenderFooter renders left and right aligned text across width.
func RenderFooter(left, right string, width int) string {

	right = style.Truncate(right, max(width-lipgloss.Width(left)-2, 1))

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}

	return style.MutedStyle.Render(left + strings.Repeat(" ", padding) + right)
}
