package extractor

import (
	"context"
	"time"

	"github.com/desertthunder/mediafetch/internal/models"
)

// ProbeOptions configures a metadata-only lookup.
type ProbeOptions struct {
	Proxy   string        // empty for a direct connection
	Timeout time.Duration // socket timeout passed to yt-dlp
}

// FetchOptions configures one download attempt.
type FetchOptions struct {
	Proxy          string
	Timeout        time.Duration
	Kind           models.MediaKind
	Platform       models.Platform
	OutputTemplate string // yt-dlp output template, e.g. "/downloads/<id>.%(ext)s"
	OnProgress     func(Tick)
}

// Tick is a single progress sample from the extractor.
type Tick struct {
	DownloadedBytes int
	TotalBytes      int
	BytesPerSecond  float64
	ETA             time.Duration
}

// Percent is the completed share of the current file in the 0..100 range.
func (t Tick) Percent() float64 {
	if t.TotalBytes <= 0 {
		return 0
	}
	p := float64(t.DownloadedBytes) / float64(t.TotalBytes) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Client is the contract the download pipeline needs from an extraction tool.
type Client interface {
	Probe(ctx context.Context, url string, opts ProbeOptions) (*MediaInfo, error)
	Fetch(ctx context.Context, url string, opts FetchOptions) error
}
