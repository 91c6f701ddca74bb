package timecode

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5.9, "00:05"},
		{45.5, "00:45"},
		{61, "01:01"},
		{3599.99, "59:59"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{-1, "00:00"},
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRangeAndLength(t *testing.T) {
	if got := Range(12, 45.5); got != "00:12 - 00:45" {
		t.Errorf("Range = %q", got)
	}
	if got := Length(12, 45.5); got != "33.5s" {
		t.Errorf("Length = %q", got)
	}
}
