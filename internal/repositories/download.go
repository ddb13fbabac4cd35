package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

const downloadColumns = `id, sequence, url, kind, platform, title, filename, status, attempts, message,
	created_at, updated_at, finished_at, deleted_at`

// DownloadRepository implements models.Repository[*models.DownloadRecord].
type DownloadRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.DownloadRecord] = (*DownloadRepository)(nil)

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts rec with the next sequence number.
//
// An ID already set on rec (usually the task ID) is kept; otherwise one is generated.
func (r *DownloadRepository) Create(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if rec.ID() == "" {
		rec.SetID(shared.GenerateID())
	}
	rec.SetSequence(sequence)

	query := `
		INSERT INTO downloads (` + downloadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.Exec(query,
		rec.ID(),
		sequence,
		rec.URL(),
		string(rec.Kind()),
		string(rec.Platform()),
		nullString(rec.Title()),
		nullString(rec.Filename()),
		string(rec.Status()),
		rec.Attempts(),
		nullString(rec.Message()),
		rec.CreatedAt(),
		rec.UpdatedAt(),
		timeArg(rec.FinishedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// Get retrieves a download by ID, excluding soft-deleted rows
func (r *DownloadRepository) Get(id string) (*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ? AND deleted_at IS NULL`

	rec, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: download %s", shared.ErrNotFound, id)
	}
	return rec, err
}

// Update writes the mutable fields of rec and bumps updated_at.
func (r *DownloadRepository) Update(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE downloads
		SET platform = ?, title = ?, filename = ?, status = ?, attempts = ?, message = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(rec.Platform()),
		nullString(rec.Title()),
		nullString(rec.Filename()),
		string(rec.Status()),
		rec.Attempts(),
		nullString(rec.Message()),
		now,
		timeArg(rec.FinishedAt()),
		rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	return requireRow(result, rec.ID())
}

// Delete soft-deletes a download by ID
func (r *DownloadRepository) Delete(id string) error {
	query := `UPDATE downloads SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return requireRow(result, id)
}

// List returns downloads newest first.
//
// Supported criteria: "status", "kind" and "platform" (string equality) and
// "limit" (int, non-positive means unlimited).
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	args := []any{}

	for _, column := range []string{"status", "kind", "platform"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// scan reads one row in [downloadColumns] order.
func (r *DownloadRepository) scan(row scanner) (*models.DownloadRecord, error) {
	var (
		id         string
		sequence   int
		url        string
		kind       string
		platform   string
		title      sql.NullString
		filename   sql.NullString
		status     string
		attempts   int
		message    sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
		finishedAt sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &url, &kind, &platform, &title, &filename, &status, &attempts, &message,
		&createdAt, &updatedAt, &finishedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	rec := models.NewDownloadRecord(models.FetchRequest{URL: url, Kind: models.MediaKind(kind)})
	rec.SetID(id)
	rec.SetSequence(sequence)
	rec.SetPlatform(models.Platform(platform))
	rec.SetTitle(title.String)
	rec.SetFilename(filename.String)
	rec.SetAttempts(attempts)
	rec.SetMessage(message.String)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		rec.SetFinishedAt(&finishedAt.Time)
	}
	rec.SetStatus(models.TaskState(status))
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}
	return rec, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: download %s not found or already deleted", shared.ErrNotFound, id)
	}
	return nil
}
