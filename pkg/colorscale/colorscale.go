// Package colorscale maps comparison deltas and series indexes to colors.
package colorscale

import (
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/buildtracker/pkg/comparator"
)

// Color is an sRGB color with alpha in [0,1].
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
	Alpha float64
}

// CSS returns the color as a CSS rgba() value.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.Red, c.Green, c.Blue, formatAlpha(c.Alpha))
}

// Hex returns the opaque color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue)
}

func formatAlpha(alpha float64) string {
	return fmt.Sprintf("%g", math.Round(alpha*1000)/1000)
}

// Delta color families.
var (
	// Increase colors growing artifacts.
	Increase = Color{Red: 249, Green: 84, Blue: 84, Alpha: 1}
	// Decrease colors shrinking artifacts.
	Decrease = Color{Red: 6, Green: 176, Blue: 41, Alpha: 1}
	// Neutral colors artifacts with no change at all.
	Neutral = Color{Red: 255, Green: 255, Blue: 255, Alpha: 1}
)

// Scale returns the family color with alpha |percent| clamped to [0,1].
func Scale(family Color, percent float64) Color {
	family.Alpha = math.Max(math.Min(math.Abs(percent), 1), 0)

	return family
}

// DeltaColor encodes a delta cell: growth is red, shrinkage green, intensity
// follows the percent change. A hash change without a size change is a
// full-intensity warning; no change at all is neutral.
func DeltaColor(cell comparator.DeltaCell, kind string) Color {
	percent := cell.PercentDelta(kind)

	switch {
	case percent > 0:
		return Scale(Increase, percent)
	case cell.SizeDelta(kind) == 0 && cell.HashChanged:
		return Scale(Increase, 1)
	case cell.SizeDelta(kind) == 0:
		return Neutral
	default:
		return Scale(Decrease, percent)
	}
}

// Cubehelix constants for the rainbow interpolator.
const (
	helixA = -0.14861
	helixB = 1.78277
	helixC = -0.29227
	helixD = -0.90649
	helixE = 1.97294

	degreesToRadians = math.Pi / 180
	maxChannel       = 255
)

// ColorForIndex returns a distinct hue for series i of total using a
// sequential rainbow scale over [0,total).
func ColorForIndex(i, total int) Color {
	if total <= 0 {
		return Rainbow(0)
	}

	return Rainbow(float64(i) / float64(total))
}

// Rainbow samples the cyclical cubehelix rainbow at t; t wraps into [0,1].
func Rainbow(t float64) Color {
	if t < 0 || t > 1 {
		t -= math.Floor(t)
	}

	ts := math.Abs(t - 0.5)
	hue := 360*t - 100
	saturation := 1.5 - 1.5*ts
	lightness := 0.8 - 0.9*ts

	return cubehelix(hue, saturation, lightness)
}

func cubehelix(hue, saturation, lightness float64) Color {
	h := (hue + 120) * degreesToRadians
	amp := saturation * lightness * (1 - lightness)
	cosh, sinh := math.Cos(h), math.Sin(h)

	return Color{
		Red:   channel(lightness + amp*(helixA*cosh+helixB*sinh)),
		Green: channel(lightness + amp*(helixC*cosh+helixD*sinh)),
		Blue:  channel(lightness + amp*(helixE*cosh)),
		Alpha: 1,
	}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * maxChannel))
}

// Palette returns total distinct colors as hex strings, for chart series.
func Palette(total int) []string {
	colors := make([]string, total)
	for i := range colors {
		colors[i] = ColorForIndex(i, total).Hex()
	}

	return colors
}
