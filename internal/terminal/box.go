package terminal

import (
	"strings"
	"unicode/utf8"
)

// Box drawing characters.
const (
	BoxHorizontal       = "─"
	BoxHeavyHorizontal  = "━"
	BoxHeavyVertical    = "┃"
	BoxHeavyTopLeft     = "┏"
	BoxHeavyTopRight    = "┓"
	BoxHeavyBottomLeft  = "┗"
	BoxHeavyBottomRight = "┛"
)

// HeaderPadding is the space around header content.
const HeaderPadding = 1

// DrawSeparator draws a thin horizontal line.
func DrawSeparator(width int) string {
	if width <= 0 {
		return ""
	}

	return strings.Repeat(BoxHorizontal, width)
}

// DrawHeader draws a heavy-bordered header with title on the left and
// rightText on the right:
//
//	┏━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┓
//	┃ BUILD SIZES             abc1234 (3) ┃
//	┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛
func DrawHeader(title, rightText string, width int) string {
	titleLen := utf8.RuneCountInString(title)
	rightLen := utf8.RuneCountInString(rightText)

	minRequired := titleLen + rightLen + 4 + (HeaderPadding * 2)
	if width < minRequired {
		width = minRequired
	}

	innerWidth := width - 2
	contentWidth := innerWidth - (HeaderPadding * 2)

	gap := max(contentWidth-titleLen-rightLen, 1)
	content := title + strings.Repeat(" ", gap) + rightText
	padding := strings.Repeat(" ", HeaderPadding)

	return BoxHeavyTopLeft + strings.Repeat(BoxHeavyHorizontal, innerWidth) + BoxHeavyTopRight + "\n" +
		BoxHeavyVertical + padding + content + padding + BoxHeavyVertical + "\n" +
		BoxHeavyBottomLeft + strings.Repeat(BoxHeavyHorizontal, innerWidth) + BoxHeavyBottomRight
}
