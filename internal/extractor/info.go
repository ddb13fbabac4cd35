package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/mediafetch/internal/models"
)

// Thumbnail is one entry of yt-dlp's thumbnails list.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// MediaInfo is the subset of yt-dlp's info JSON the service reads.
type MediaInfo struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	ExtractorKey string      `json:"extractor_key"`
	Thumbnail    string      `json:"thumbnail"`
	Thumbnails   []Thumbnail `json:"thumbnails"`
	Duration     *float64    `json:"duration"`
	ViewCount    *int64      `json:"view_count"`
	LikeCount    *int64      `json:"like_count"`
	RepinCount   *int64      `json:"repin_count"`
	CommentCount *int64      `json:"comment_count"`
	Uploader     string      `json:"uploader"`
	UploaderID   string      `json:"uploader_id"`
	UploadDate   string      `json:"upload_date"`
	WebpageURL   string      `json:"webpage_url"`
}

// ParseMediaInfo decodes the single JSON document printed by `yt-dlp -J`.
func ParseMediaInfo(data []byte) (*MediaInfo, error) {
	var info MediaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// Platform derives the hosting platform from the extractor key.
func (m *MediaInfo) Platform() models.Platform {
	return models.PlatformFromExtractor(m.ExtractorKey)
}

// Details projects the metadata for the info endpoint.
//
// Instagram reports likes in place of views and Pinterest reports repins, falling
// back to comments; both use the last (largest) thumbnail. Pinterest authors are
// identified by uploader_id.
func (m *MediaInfo) Details(sourceURL string) models.MediaDetails {
	platform := m.Platform()
	d := models.MediaDetails{
		Platform:     platform,
		Title:        orDefault(m.Title, "N/A"),
		Author:       orDefault(m.Uploader, "N/A"),
		ThumbnailURL: m.Thumbnail,
		ViewsOrLikes: m.ViewCount,
		UploadDate:   m.UploadDate,
		SourceURL:    sourceURL,
	}
	if m.Duration != nil {
		d.DurationSeconds = *m.Duration
	}

	switch platform {
	case models.PlatformInstagram:
		d.ViewsOrLikes = m.LikeCount
	case models.PlatformPinterest:
		d.ViewsOrLikes = m.RepinCount
		if d.ViewsOrLikes == nil {
			d.ViewsOrLikes = m.CommentCount
		}
		if m.UploaderID != "" {
			d.Author = m.UploaderID
		}
	}

	if platform != models.PlatformYouTube && len(m.Thumbnails) > 0 {
		if last := m.Thumbnails[len(m.Thumbnails)-1].URL; last != "" {
			d.ThumbnailURL = last
		}
	}

	return d
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
