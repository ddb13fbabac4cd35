package shared

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const notAvailable = "N/A"

// FormatCount renders a view or like count with thousands separators, or N/A when unknown.
func FormatCount(n *int64) string {
	if n == nil {
		return notAvailable
	}
	return humanize.Comma(*n)
}

// FormatDuration renders seconds as HH:MM:SS, or MM:SS under an hour.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return notAvailable
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatSpeed renders a transfer rate such as "1.2 MB/s".
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 || math.IsNaN(bytesPerSecond) || math.IsInf(bytesPerSecond, 0) {
		return notAvailable
	}
	return humanize.Bytes(uint64(bytesPerSecond)) + "/s"
}

// FormatETA renders the remaining time of a transfer; unknown is "...".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "..."
	}
	return FormatDuration(math.Ceil(d.Seconds()))
}

// FormatSize renders a byte count such as "24 MB".
func FormatSize(n int64) string {
	if n < 0 {
		return notAvailable
	}
	return humanize.Bytes(uint64(n))
}

// FormatDate converts yt-dlp's YYYYMMDD upload date to "January 02, 2006".
func FormatDate(yyyymmdd string) string {
	yyyymmdd = strings.TrimSpace(yyyymmdd)
	if yyyymmdd == "" {
		return notAvailable
	}
	t, err := time.Parse("20060102", yyyymmdd)
	if err != nil {
		return yyyymmdd
	}
	return t.Format("January 02, 2006")
}
