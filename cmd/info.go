package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/mediafetch/internal/formatter"
	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Info probes a URL through every route and prints its metadata.
func (r *Runner) Info(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.Args().First()
	if rawURL == "" {
		return fmt.Errorf("%w: URL", shared.ErrMissingArgument)
	}

	st, err := r.open(stackOpts{})
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	details, err := st.service.Info(ctx, rawURL)
	if err != nil {
		return err
	}
	resp := details.Response()

	if path := cmd.String("thumbnail"); path != "" {
		img, err := formatter.DownloadImage(ctx, details.ThumbnailURL)
		if err != nil {
			r.logger.Warn("thumbnail not saved", "err", err)
		} else if err := os.WriteFile(path, img, 0644); err != nil {
			return fmt.Errorf("failed to write thumbnail: %w", err)
		} else {
			r.logger.Info("thumbnail saved", "path", path, "size", humanize.Bytes(uint64(len(img))))
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(resp, cmd.Bool("pretty"))
	}

	r.writePlainHeader(resp.Title)
	r.writePlain("Platform:  %s\n", resp.Type)
	r.writePlain("Author:    %s\n", resp.Author)
	r.writePlain("Duration:  %s\n", resp.Duration)
	r.writePlain("Views:     %s\n", resp.Views)
	if resp.UploadDate != "" {
		r.writePlain("Uploaded:  %s\n", resp.UploadDate)
	}
	r.writePlain("Thumbnail: %s\n", resp.ThumbnailURL)
	return r.writePlain("URL:       %s\n", resp.URL)
}
