package terminal

import (
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
)

// Color is a terminal text color.
type Color int

// Colors.
const (
	ColorNone Color = iota
	ColorGreen
	ColorYellow
	ColorRed
	ColorBlue
	ColorGray
)

var attributes = map[Color][]color.Attribute{
	ColorGreen:  {color.FgGreen},
	ColorYellow: {color.FgYellow},
	ColorRed:    {color.FgRed},
	ColorBlue:   {color.FgBlue, color.Bold},
	ColorGray:   {color.FgHiBlack},
}

// Colorize wraps text in the color's escape codes unless NoColor is set.
func (c Config) Colorize(text string, col Color) string {
	attrs, ok := attributes[col]
	if c.NoColor || !ok {
		return text
	}

	painter := color.New(attrs...)
	painter.EnableColor()

	return painter.Sprint(text)
}

// ColorForDelta colors growth red, shrinkage green and a hash change
// without a size change yellow.
func ColorForDelta(cell comparator.DeltaCell, kind string) Color {
	switch {
	case cell.IsUnexpectedHashChange(kind):
		return ColorYellow
	case cell.SizeDelta(kind) > 0:
		return ColorRed
	case cell.SizeDelta(kind) < 0:
		return ColorGreen
	default:
		return ColorNone
	}
}
