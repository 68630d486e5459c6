package terminal

import (
	"fmt"
	"strings"
)

// Progress bar characters.
const (
	ProgressFilled = "█"
	ProgressEmpty  = "░"
)

// PercentMultiplier converts a fraction to percent.
const PercentMultiplier = 100

// DrawProgressBar draws a bar of width cells filled to value, clamped to [0, 1].
func DrawProgressBar(value float64, width int) string {
	value = min(max(value, 0), 1)

	filled := int(value * float64(width))

	return strings.Repeat(ProgressFilled, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// DrawShareBar draws a labeled share line:
//
//	main            ████████████████░░░░  68%  1.2 MiB
func DrawShareBar(label string, share float64, size string, labelWidth, barWidth int) string {
	paddedLabel := PadRight(TruncateWithEllipsis(label, labelWidth), labelWidth)
	pctValue := int(min(max(share, 0), 1) * PercentMultiplier)

	return fmt.Sprintf("%s %s %3d%%  %s", paddedLabel, DrawProgressBar(share, barWidth), pctValue, size)
}
