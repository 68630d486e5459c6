// Package terminal renders build comparisons for the command line: a heavy
// header, a colored go-pretty delta table and a size breakdown of the newest
// build.
package terminal

import (
	"os"
	"strconv"

	"github.com/fatih/color"
)

// Width limits.
const (
	DefaultWidth = 80
	MinWidth     = 60
	MaxWidth     = 120
)

// Config holds terminal rendering configuration.
type Config struct {
	Width   int
	NoColor bool
}

// NewConfig reads the width from COLUMNS and honors NO_COLOR.
func NewConfig() Config {
	return Config{
		Width:   DetectWidth(),
		NoColor: os.Getenv("NO_COLOR") != "" || color.NoColor,
	}
}

// DetectWidth returns the COLUMNS width clamped to [MinWidth, MaxWidth],
// or DefaultWidth when unset or invalid.
func DetectWidth() int {
	columnsEnv := os.Getenv("COLUMNS")
	if columnsEnv == "" {
		return DefaultWidth
	}

	width, err := strconv.Atoi(columnsEnv)
	if err != nil {
		return DefaultWidth
	}

	return min(max(width, MinWidth), MaxWidth)
}
