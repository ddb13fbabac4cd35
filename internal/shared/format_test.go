package shared

import (
	"testing"
	"time"
)

func TestFormatCount(t *testing.T) {
	n := func(v int64) *int64 { return &v }

	tc := []struct {
		name string
		in   *int64
		want string
	}{
		{name: "unknown", in: nil, want: "N/A"},
		{name: "small", in: n(999), want: "999"},
		{name: "thousands", in: n(1234567), want: "1,234,567"},
		{name: "zero", in: n(0), want: "0"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCount(tt.in); got != tt.want {
				t.Errorf("FormatCount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		seconds float64
		want    string
	}{
		{0, "N/A"},
		{-3, "N/A"},
		{59, "00:59"},
		{61.9, "01:01"},
		{3600, "01:00:00"},
		{3723, "01:02:03"},
	}

	for _, tt := range tc {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	if got := FormatETA(0); got != "..." {
		t.Errorf("FormatETA(0) = %q, want ...", got)
	}
	if got := FormatETA(90 * time.Second); got != "01:30" {
		t.Errorf("FormatETA(90s) = %q, want 01:30", got)
	}
	if got := FormatETA(1500 * time.Millisecond); got != "00:02" {
		t.Errorf("FormatETA(1.5s) = %q, want 00:02", got)
	}
}

func TestFormatSpeedAndSize(t *testing.T) {
	if got := FormatSpeed(0); got != "N/A" {
		t.Errorf("FormatSpeed(0) = %q", got)
	}
	if got := FormatSpeed(2_000_000); got != "2.0 MB/s" {
		t.Errorf("FormatSpeed(2e6) = %q, want 2.0 MB/s", got)
	}
	if got := FormatSize(1000); got != "1.0 kB" {
		t.Errorf("FormatSize(1000) = %q, want 1.0 kB", got)
	}
}

func TestFormatDate(t *testing.T) {
	tc := map[string]string{
		"20240105":  "January 05, 2024",
		"":          "N/A",
		"yesterday": "yesterday",
	}
	for in, want := range tc {
		if got := FormatDate(in); got != want {
			t.Errorf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}
