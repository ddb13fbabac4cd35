package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

// progressInterval throttles progress callbacks from yt-dlp.
const progressInterval = 500 * time.Millisecond

// YTDLP implements [Client] with the yt-dlp executable.
type YTDLP struct {
	logger       *log.Logger
	timeout      time.Duration
	audioQuality string
	now          func() time.Time
}

var _ Client = (*YTDLP)(nil)

// NewYTDLP builds a client from the extractor section of the configuration.
func NewYTDLP(cfg shared.ExtractorConfig, logger *log.Logger) *YTDLP {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	quality := cfg.AudioQuality
	if quality == "" {
		quality = DefaultAudioQuality
	}
	return &YTDLP{
		logger:       shared.WithLogger(logger, "component", "ytdlp"),
		timeout:      cfg.Timeout(),
		audioQuality: quality,
		now:          time.Now,
	}
}

// Check reports the installed yt-dlp version, downloading the binary first when install is set.
func (y *YTDLP) Check(ctx context.Context, install bool) (string, error) {
	if install {
		resolved, err := ytdlp.Install(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("%w: install failed: %v", shared.ErrExtractorMissing, err)
		}
		y.logger.Debug("yt-dlp resolved", "path", resolved.Executable)
	}

	res, err := ytdlp.New().Version(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrExtractorMissing, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Probe runs `yt-dlp -J --skip-download` and decodes the metadata document.
func (y *YTDLP) Probe(ctx context.Context, url string, opts ProbeOptions) (*MediaInfo, error) {
	dl := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings()
	y.applyRoute(dl, opts.Proxy, opts.Timeout)

	res, err := dl.Run(ctx, url)
	if err != nil {
		return nil, runError("probe", res, err)
	}

	info, err := ParseMediaInfo([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Fetch downloads url into opts.OutputTemplate.
//
// Video is merged into an mp4 container; audio is extracted and transcoded to mp3.
func (y *YTDLP) Fetch(ctx context.Context, url string, opts FetchOptions) error {
	if opts.OutputTemplate == "" {
		return fmt.Errorf("%w: output template is required", shared.ErrInvalidArgument)
	}

	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		Format(FormatFor(opts.Kind, opts.Platform)).
		Output(opts.OutputTemplate)
	y.applyRoute(dl, opts.Proxy, opts.Timeout)

	if opts.Kind == models.KindAudio {
		dl.ExtractAudio().AudioFormat(AudioCodec).AudioQuality(y.audioQuality)
	} else {
		dl.MergeOutputFormat(MergeContainer)
	}

	if opts.OnProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			if ctx.Err() != nil {
				return
			}
			opts.OnProgress(tickFromUpdate(update, y.now()))
		})
	}

	res, err := dl.Run(ctx, url)
	if err != nil {
		return runError("fetch", res, err)
	}
	return nil
}

func (y *YTDLP) applyRoute(dl *ytdlp.Command, proxy string, timeout time.Duration) {
	if proxy != "" {
		dl.Proxy(proxy)
	}
	if timeout <= 0 {
		timeout = y.timeout
	}
	if timeout > 0 {
		dl.SocketTimeout(timeout.Seconds())
	}
}

// tickFromUpdate converts a go-ytdlp progress update, deriving speed from the elapsed time.
func tickFromUpdate(u ytdlp.ProgressUpdate, now time.Time) Tick {
	t := Tick{DownloadedBytes: u.DownloadedBytes, TotalBytes: u.TotalBytes}
	if !u.Started.IsZero() {
		if elapsed := now.Sub(u.Started).Seconds(); elapsed > 0 {
			t.BytesPerSecond = float64(u.DownloadedBytes) / elapsed
		}
	}
	if t.BytesPerSecond > 0 && u.TotalBytes > u.DownloadedBytes {
		remaining := float64(u.TotalBytes-u.DownloadedBytes) / t.BytesPerSecond
		t.ETA = time.Duration(remaining * float64(time.Second))
	}
	return t
}

// runError keeps yt-dlp's own error line so it can be classified upstream.
func runError(op string, res *ytdlp.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("yt-dlp %s: %w", op, err)
	}
	text := ""
	if res != nil {
		text = TrimErrorText(res.Stderr)
	}
	if text == "" {
		text = TrimErrorText(err.Error())
	}
	return fmt.Errorf("yt-dlp %s: %s: %w", op, text, err)
}

// TrimErrorText returns the text after the last "ERROR: " marker, or the trimmed input when absent.
func TrimErrorText(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "ERROR: "); i >= 0 {
		s = s[i+len("ERROR: "):]
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[:nl]
	}
	return strings.TrimSpace(s)
}
