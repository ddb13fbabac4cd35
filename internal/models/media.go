package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/mediafetch/internal/shared"
)

// MediaKind selects between a merged video file and an extracted audio track.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// ParseMediaKind parses the `type` query value. Empty means video.
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindVideo:
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	default:
		return "", fmt.Errorf("%w: unsupported media type %q", shared.ErrInvalidInput, s)
	}
}

// Extension is the file extension of the final artifact, without a dot.
func (k MediaKind) Extension() string {
	if k == KindAudio {
		return "mp3"
	}
	return "mp4"
}

func (k MediaKind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool { return k == KindVideo || k == KindAudio }

// Platform is the hosting site, derived from the extractor key.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformPinterest Platform = "pinterest"
)

// PlatformFromExtractor maps a yt-dlp extractor key such as "InstagramStory" to a [Platform]; unknown keys are treated as YouTube.
func PlatformFromExtractor(key string) Platform {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "instagram"):
		return PlatformInstagram
	case strings.Contains(lower, "pinterest"):
		return PlatformPinterest
	default:
		return PlatformYouTube
	}
}

// FetchRequest is an immutable, validated request for one media URL.
type FetchRequest struct {
	URL  string
	Kind MediaKind
}

// NewFetchRequest validates rawURL and kind. Failures wrap [shared.ErrInvalidInput].
func NewFetchRequest(rawURL, kind string) (FetchRequest, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return FetchRequest{}, err
	}
	k, err := ParseMediaKind(kind)
	if err != nil {
		return FetchRequest{}, err
	}
	return FetchRequest{URL: u, Kind: k}, nil
}

// ValidateURL trims rawURL and requires an absolute http(s) URL with a host.
func ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: URL is required", shared.ErrInvalidInput)
	}
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q is not a valid http(s) URL", shared.ErrInvalidInput, rawURL)
	}
	return rawURL, nil
}

// RouteCandidate is one egress route. An empty Proxy means a direct connection.
type RouteCandidate struct {
	Proxy string
}

// Direct returns the no-proxy candidate.
func Direct() RouteCandidate { return RouteCandidate{} }

// IsDirect reports whether the candidate bypasses proxies.
func (c RouteCandidate) IsDirect() bool { return c.Proxy == "" }

// String returns a loggable identity with any proxy password removed.
func (c RouteCandidate) String() string {
	if c.IsDirect() {
		return "direct"
	}
	return RedactProxy(c.Proxy)
}

// RedactProxy masks the password in a proxy URL's userinfo.
func RedactProxy(proxy string) string {
	u, err := url.Parse(proxy)
	if err != nil || u.User == nil {
		if at := strings.LastIndex(proxy, "@"); at >= 0 {
			return "***@" + proxy[at+1:]
		}
		return proxy
	}
	return u.Redacted()
}

// MediaDetails is the read-only projection of extractor metadata served by the info endpoint.
type MediaDetails struct {
	Platform        Platform
	Title           string
	Author          string
	ThumbnailURL    string
	DurationSeconds float64
	ViewsOrLikes    *int64
	UploadDate      string
	SourceURL       string
}

// DetailsResponse is the JSON body of a successful info lookup.
type DetailsResponse struct {
	Type         Platform `json:"type"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Duration     string   `json:"duration"`
	Views        string   `json:"views"`
	UploadDate   string   `json:"upload_date,omitempty"`
	URL          string   `json:"url"`
}

// Response formats the details for display: duration as MM:SS or HH:MM:SS, counts with separators.
func (d MediaDetails) Response() DetailsResponse {
	resp := DetailsResponse{
		Type:         d.Platform,
		Title:        d.Title,
		Author:       d.Author,
		ThumbnailURL: d.ThumbnailURL,
		Duration:     shared.FormatDuration(d.DurationSeconds),
		Views:        shared.FormatCount(d.ViewsOrLikes),
		URL:          d.SourceURL,
	}
	if d.UploadDate != "" {
		resp.UploadDate = shared.FormatDate(d.UploadDate)
	}
	return resp
}
