// Package timecode formats playback positions for people.
package timecode

import (
	"fmt"
	"math"
)

// Format renders seconds as MM:SS, or HH:MM:SS from one hour up. NaN and
// infinite or negative values render as 00:00.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00"
	}

	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Range renders "start - end".
func Range(start, end float64) string {
	return Format(start) + " - " + Format(end)
}

// Length renders a clip length with one decimal, e.g. "33.5s".
func Length(start, end float64) string {
	return fmt.Sprintf("%.1fs", end-start)
}
