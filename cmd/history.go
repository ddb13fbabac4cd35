package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mediafetch/internal/formatter"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recent download records, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if s := cmd.String("status"); s != "" {
		criteria["status"] = s
	}
	if p := cmd.String("platform"); p != "" {
		criteria["platform"] = p
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]models.RecordView, 0, len(records))
		for _, rec := range records {
			views = append(views, rec.View())
		}
		return r.writeJSON(views, true)
	}

	if len(records) == 0 {
		return r.writePlain("No downloads recorded.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d download(s)", len(records)))
	for _, rec := range records {
		title := rec.Title()
		if title == "" {
			title = rec.URL()
		}
		r.writePlain("#%-4d %-10s %-6s %s\n", rec.Sequence(), rec.Status(), rec.Kind(), title)
		r.writePlain("      %s, %d attempt(s)", humanize.Time(rec.CreatedAt()), rec.Attempts())
		if msg := rec.Message(); msg != "" {
			r.writePlain(", %s", msg)
		}
		r.writePlain("\n")
	}
	return nil
}

// HistoryExport writes the history in the requested format.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}
	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		path = "history." + format.Extension()
	}
	written, err := formatter.WriteExport(records, format, path)
	if err != nil {
		return err
	}

	r.logger.Info("history exported", "path", written, "records", len(records))
	return r.writePlain("✓ Exported %d record(s) to %s\n", len(records), written)
}
