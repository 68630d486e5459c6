// Package format renders byte counts, deltas and timestamps for humans.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// percentScale converts a fractional change to percent.
const percentScale = 100

// Bytes formats a byte count using binary (1024-based) units.
func Bytes(size int64) string {
	if size < 0 {
		return "-" + humanize.IBytes(uint64(-size))
	}

	return humanize.IBytes(uint64(size))
}

// SignedBytes formats a byte delta, always carrying an explicit sign for non-zero values.
func SignedBytes(delta int64) string {
	if delta > 0 {
		return "+" + Bytes(delta)
	}

	return Bytes(delta)
}

// ByteCount formats an exact byte delta with thousands separators, e.g. "-1,234 bytes".
func ByteCount(delta int64) string {
	return humanize.Comma(delta) + " bytes"
}

// Percent formats a fractional change as a percentage with three decimals.
func Percent(fraction float64) string {
	return fmt.Sprintf("%.3f%%", fraction*percentScale)
}

// RelativeTime formats a timestamp relative to now ("3 days ago").
func RelativeTime(t time.Time) string {
	return humanize.Time(t)
}

// Timestamp formats a build time for tables and chart axes.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
