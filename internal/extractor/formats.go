package extractor

import "github.com/desertthunder/mediafetch/internal/models"

// Format selectors handed to yt-dlp's -f flag.
const (
	VideoFormat          = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	PinterestVideoFormat = "bestvideo[ext=mp4]/best[ext=mp4]/best"
	AudioFormat          = "bestaudio/best"
)

// Post-processing targets.
const (
	AudioCodec          = "mp3"
	DefaultAudioQuality = "192"
	MergeContainer      = "mp4"
)

// FormatFor picks the format selector for a kind on a platform.
//
// Pinterest pins rarely expose a separate audio stream, so the video selector skips the merge.
func FormatFor(kind models.MediaKind, platform models.Platform) string {
	if kind == models.KindAudio {
		return AudioFormat
	}
	if platform == models.PlatformPinterest {
		return PinterestVideoFormat
	}
	return VideoFormat
}
