package tasks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/artifacts"
	"github.com/desertthunder/mediafetch/internal/extractor"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// FallbackTitle names files whose title sanitizes to nothing.
const FallbackTitle = "media_file"

// maxBaseBytes keeps "<base>.<ext>" under common 255-byte name limits.
const maxBaseBytes = 200

// DeliveryPrefix is the path under which finished files are served.
const DeliveryPrefix = "/get-file/"

// ArtifactRef describes a promoted file.
type ArtifactRef struct {
	Name        string
	Path        string
	DownloadURL string
}

// Runner performs one download attempt over one route.
type Runner struct {
	client  extractor.Client
	store   *artifacts.Store
	timeout time.Duration
	logger  *log.Logger
	newID   func() string
}

// NewRunner wires a runner to an extractor and a downloads store.
func NewRunner(client extractor.Client, store *artifacts.Store, timeout time.Duration, logger *log.Logger) *Runner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Runner{
		client:  client,
		store:   store,
		timeout: timeout,
		logger:  logger,
		newID:   shared.GenerateID,
	}
}

// Execute probes, downloads, promotes and announces one task over route.
//
// Every failure is returned to the caller so the next route can be tried. The
// temporary files of a failed attempt are removed.
func (r *Runner) Execute(ctx context.Context, task *Task, route models.RouteCandidate) (ArtifactRef, error) {
	req := task.Request
	attempt := task.beginAttempt()
	logger := shared.WithLogger(r.logger, "task", task.ID, "attempt", attempt, "route", route.String())

	task.setState(models.TaskProbing)
	info, err := r.client.Probe(ctx, req.URL, extractor.ProbeOptions{Proxy: route.Proxy, Timeout: r.timeout})
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("probe: %w", err)
	}

	platform := info.Platform()
	ext := req.Kind.Extension()
	finalName := SanitizeTitle(info.Title) + "." + ext
	task.setMedia(platform, info.Title, finalName)

	tempID := r.newID()
	task.setState(models.TaskDownloading)
	logger.Debug("downloading", "title", info.Title, "temp", tempID)

	err = r.client.Fetch(ctx, req.URL, extractor.FetchOptions{
		Proxy:          route.Proxy,
		Timeout:        r.timeout,
		Kind:           req.Kind,
		Platform:       platform,
		OutputTemplate: r.store.TempTemplate(tempID),
		OnProgress: func(tick extractor.Tick) {
			task.Publish(models.Progress{
				Percent: tick.Percent(),
				Speed:   shared.FormatSpeed(tick.BytesPerSecond),
				ETA:     shared.FormatETA(tick.ETA),
			})
		},
	})
	if err != nil {
		r.store.Cleanup(tempID)
		return ArtifactRef{}, fmt.Errorf("fetch: %w", err)
	}

	task.setState(models.TaskPromoting)
	tempPath, err := r.store.FindTemp(tempID, ext)
	if err != nil {
		r.store.Cleanup(tempID)
		return ArtifactRef{}, err
	}
	finalPath, err := r.store.Promote(tempPath, finalName)
	if err != nil {
		r.store.Cleanup(tempID)
		return ArtifactRef{}, err
	}
	r.store.Cleanup(tempID)

	ref := ArtifactRef{
		Name:        finalName,
		Path:        finalPath,
		DownloadURL: DeliveryPrefix + url.PathEscape(finalName),
	}
	task.Publish(models.Finished{DownloadURL: ref.DownloadURL})
	logger.Info("download finished", "file", finalName)
	return ref, nil
}

// SanitizeTitle keeps letters, digits, spaces, underscores and hyphens, trims the
// result and falls back to [FallbackTitle] when nothing is left.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	base := strings.TrimSpace(b.String())

	if len(base) > maxBaseBytes {
		cut := maxBaseBytes
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		base = strings.TrimSpace(base[:cut])
	}
	if base == "" {
		return FallbackTitle
	}
	return base
}
