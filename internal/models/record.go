package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/mediafetch/internal/shared"
)

// DownloadRecord is the persisted history of one download task.
type DownloadRecord struct {
	id         string
	sequence   int
	url        string
	kind       MediaKind
	platform   Platform
	title      string
	filename   string
	status     TaskState
	attempts   int
	message    string
	createdAt  time.Time
	updatedAt  time.Time
	finishedAt *time.Time
	deletedAt  *time.Time
}

var _ Model = (*DownloadRecord)(nil)

// NewDownloadRecord creates a pending record for req. The ID is assigned by the repository.
func NewDownloadRecord(req FetchRequest) *DownloadRecord {
	now := time.Now().UTC()
	return &DownloadRecord{
		url:       req.URL,
		kind:      req.Kind,
		platform:  PlatformYouTube,
		status:    TaskPending,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *DownloadRecord) ID() string { return d.id }
func (d *DownloadRecord) Sequence() int { return d.sequence }
func (d *DownloadRecord) URL() string { return d.url }
func (d *DownloadRecord) Kind() MediaKind { return d.kind }
func (d *DownloadRecord) Platform() Platform { return d.platform }
func (d *DownloadRecord) Title() string { return d.title }
func (d *DownloadRecord) Filename() string { return d.filename }
func (d *DownloadRecord) Status() TaskState { return d.status }
func (d *DownloadRecord) Attempts() int { return d.attempts }
func (d *DownloadRecord) Message() string { return d.message }
func (d *DownloadRecord) CreatedAt() time.Time { return d.createdAt }
func (d *DownloadRecord) UpdatedAt() time.Time { return d.updatedAt }
func (d *DownloadRecord) FinishedAt() *time.Time { return d.finishedAt }
func (d *DownloadRecord) DeletedAt() *time.Time { return d.deletedAt }

func (d *DownloadRecord) SetID(id string) { d.id = id }
func (d *DownloadRecord) SetSequence(seq int) { d.sequence = seq }
func (d *DownloadRecord) SetPlatform(p Platform) { d.platform = p }
func (d *DownloadRecord) SetTitle(title string) { d.title = title }
func (d *DownloadRecord) SetFilename(name string) { d.filename = name }
func (d *DownloadRecord) SetAttempts(n int) { d.attempts = n }
func (d *DownloadRecord) SetMessage(msg string) { d.message = msg }
func (d *DownloadRecord) SetCreatedAt(t time.Time) { d.createdAt = t }
func (d *DownloadRecord) SetUpdatedAt(t time.Time) { d.updatedAt = t }
func (d *DownloadRecord) SetFinishedAt(t *time.Time) { d.finishedAt = t }
func (d *DownloadRecord) SetDeletedAt(t *time.Time) { d.deletedAt = t }

// SetStatus moves the record to s, stamping the finish time on terminal states.
func (d *DownloadRecord) SetStatus(s TaskState) {
	d.status = s
	if s.IsTerminal() && d.finishedAt == nil {
		now := time.Now().UTC()
		d.finishedAt = &now
	}
}

// Validate checks required fields and enum values.
func (d *DownloadRecord) Validate() error {
	if d.url == "" {
		return fmt.Errorf("%w: download record requires a URL", shared.ErrInvalidInput)
	}
	if !d.kind.Valid() {
		return fmt.Errorf("%w: unknown media kind %q", shared.ErrInvalidInput, d.kind)
	}
	if !d.status.Valid() {
		return fmt.Errorf("%w: unknown task state %q", shared.ErrInvalidInput, d.status)
	}
	if d.attempts < 0 {
		return fmt.Errorf("%w: negative attempt count", shared.ErrInvalidInput)
	}
	return nil
}

// RecordView is the JSON shape of a [DownloadRecord] in API responses and exports.
type RecordView struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	URL        string     `json:"url"`
	Type       MediaKind  `json:"type"`
	Platform   Platform   `json:"platform"`
	Title      string     `json:"title,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	Status     TaskState  `json:"status"`
	Attempts   int        `json:"attempts"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// View copies d into its JSON shape.
func (d *DownloadRecord) View() RecordView {
	return RecordView{
		ID:         d.id,
		Sequence:   d.sequence,
		URL:        d.url,
		Type:       d.kind,
		Platform:   d.platform,
		Title:      d.title,
		Filename:   d.filename,
		Status:     d.status,
		Attempts:   d.attempts,
		Message:    d.message,
		CreatedAt:  d.createdAt,
		FinishedAt: d.finishedAt,
	}
}
