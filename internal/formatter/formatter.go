// package formatter exports download history to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or common alias ("markdown", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want csv, md, txt or json)", shared.ErrInvalidArgument, s)
	}
}

// Extension is the file extension for f, without a dot.
func (f Format) Extension() string { return string(f) }

const timeLayout = "2006-01-02 15:04:05"

// Export encodes records in the given format.
func Export(records []*models.DownloadRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(records)
	case FormatMarkdown:
		return ExportToMarkdown(records, "Download history")
	case FormatText:
		return ExportToText(records)
	case FormatJSON:
		return ExportToJSON(records)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV writes one row per record with a header row.
func ExportToCSV(records []*models.DownloadRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Created", "Type", "Platform", "Status", "Attempts", "Title", "Filename", "URL", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Sequence()),
			rec.ID(),
			rec.CreatedAt().UTC().Format(timeLayout),
			string(rec.Kind()),
			string(rec.Platform()),
			string(rec.Status()),
			strconv.Itoa(rec.Attempts()),
			rec.Title(),
			rec.Filename(),
			rec.URL(),
			rec.Message(),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, a status summary and a table of records.
func ExportToMarkdown(records []*models.DownloadRecord, heading string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", heading)
	fmt.Fprintf(&buf, "**Downloads**: %d\n", len(records))

	counts := map[models.TaskState]int{}
	for _, rec := range records {
		counts[rec.Status()]++
	}
	fmt.Fprintf(&buf, "**Finished**: %d\n", counts[models.TaskFinished])
	fmt.Fprintf(&buf, "**Failed**: %d\n\n", counts[models.TaskFailed]+counts[models.TaskCancelled])

	if len(records) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Created | Type | Platform | Status | Title | URL |\n")
	buf.WriteString("|---|---------|------|----------|--------|-------|-----|\n")
	for _, rec := range records {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s |\n",
			rec.Sequence(),
			rec.CreatedAt().UTC().Format(timeLayout),
			rec.Kind(),
			rec.Platform(),
			rec.Status(),
			markdownCell(orDash(rec.Title())),
			markdownCell(rec.URL()),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per record.
func ExportToText(records []*models.DownloadRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Downloads: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&buf, "%d. [%s] %s %s - %s\n", rec.Sequence(), rec.Status(), rec.Kind(), orDash(rec.Title()), rec.URL())
		if rec.Message() != "" {
			fmt.Fprintf(&buf, "   %s\n", rec.Message())
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes records as an indented array of [models.RecordView].
func ExportToJSON(records []*models.DownloadRecord) ([]byte, error) {
	views := make([]models.RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.View())
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport encodes records and writes them to path.
//
// Defaults to downloads_{YYYYMMDD}.{ext} in the working directory.
func WriteExport(records []*models.DownloadRecord, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("downloads_%s.%s", time.Now().Format("20060102"), format.Extension())
	}

	data, err := Export(records, format)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" || url == "N/A" {
		return nil, fmt.Errorf("%w: empty image URL", shared.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func markdownCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
