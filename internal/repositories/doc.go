// Package repositories implements SQLite persistence for download history.
//
// [DownloadRepository] satisfies models.Repository[*models.DownloadRecord]. Deleted
// records are soft-deleted through deleted_at and hidden from every query.
//
// Sequence numbers give records a stable, human-readable order independent of their
// UUIDs. [NextSequence] increments the per-table counter kept in "<table>_sequence".
package repositories
